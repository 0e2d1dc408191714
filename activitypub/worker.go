package activitypub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samanthaghraves/mastodon/domain"
	"github.com/samanthaghraves/mastodon/util"
)

// Task payloads. Every handler is idempotent: tasks are delivered at least
// once and may be retried after partial completion.

type resolveThreadPayload struct {
	StatusId         uuid.UUID `json:"status_id"`
	InReplyToURI     string    `json:"in_reply_to_uri"`
	InReplyToAtomURI string    `json:"in_reply_to_atom_uri,omitempty"`
}

type distributePayload struct {
	StatusId uuid.UUID `json:"status_id"`
}

type fetchEmojiPayload struct {
	Shortcode string `json:"shortcode"`
	Domain    string `json:"domain"`
}

type forwardReplyPayload struct {
	Body      json.RawMessage `json:"body"`
	AccountId uuid.UUID       `json:"account_id"`
	InboxURI  string          `json:"inbox_uri"`
}

// StartTaskWorker starts the background worker that drains the task queue.
func StartTaskWorker(conf *util.AppConfig, deps *InboxDeps) {
	log.Println("Starting background task worker...")

	ticker := time.NewTicker(10 * time.Second)
	go func() {
		for range ticker.C {
			processTaskQueue(conf, deps)
		}
	}()
}

// processTaskQueue processes pending tasks (max 50 at a time)
func processTaskQueue(conf *util.AppConfig, deps *InboxDeps) {
	err, tasks := deps.Database.ReadPendingTasks(50)
	if err != nil {
		log.Printf("TaskWorker: Failed to read queue: %v", err)
		return
	}

	if tasks == nil || len(*tasks) == 0 {
		return
	}

	for _, task := range *tasks {
		if err := runTask(&task, conf, deps); err != nil {
			// Failed task - retry with exponential backoff
			task.Attempts++
			backoffMinutes := []int{1, 5, 15, 60, 240, 1440}[min(task.Attempts-1, 5)]
			task.NextRetryAt = time.Now().Add(time.Duration(backoffMinutes) * time.Minute)

			if task.Attempts >= 10 {
				log.Printf("TaskWorker: Giving up on %s task %s after %d attempts", task.Kind, task.Id, task.Attempts)
				deps.Database.DeleteTask(task.Id)
			} else {
				log.Printf("TaskWorker: %s task %s failed (attempt %d), retry in %dm: %v",
					task.Kind, task.Id, task.Attempts, backoffMinutes, err)
				deps.Database.UpdateTaskAttempt(task.Id, task.Attempts, task.NextRetryAt)
			}
		} else {
			deps.Database.DeleteTask(task.Id)
		}
	}
}

func runTask(task *domain.QueueTask, conf *util.AppConfig, deps *InboxDeps) error {
	switch task.Kind {
	case domain.TaskResolveThread:
		return runResolveThread(task.Payload, conf, deps)
	case domain.TaskDistribute:
		return runDistribute(task.Payload, deps)
	case domain.TaskForwardReply:
		return runForwardReply(task.Payload, conf, deps)
	case domain.TaskFetchEmoji:
		return runFetchEmoji(task.Payload, deps)
	default:
		// Unknown kinds are dropped, not retried forever
		log.Printf("TaskWorker: Dropping task with unknown kind %q", task.Kind)
		return nil
	}
}

// runResolveThread links a reply to its parent, fetching and materializing
// the parent from its origin server when it is not yet known locally.
func runResolveThread(payload string, conf *util.AppConfig, deps *InboxDeps) error {
	var args resolveThreadPayload
	if err := json.Unmarshal([]byte(payload), &args); err != nil {
		return fmt.Errorf("bad payload: %w", err)
	}

	err, status := deps.Database.ReadStatusById(args.StatusId)
	if err != nil || status == nil {
		// The status vanished; nothing left to resolve
		return nil
	}
	if status.InReplyToId != nil {
		return nil
	}

	// The parent may have arrived through normal delivery in the meantime,
	// possibly under its atom-era alias
	if parent := resolveReplyParent(args.InReplyToURI, args.InReplyToAtomURI, deps); parent != nil {
		return deps.Database.UpdateStatusThread(status.Id, parent.Id)
	}

	parent, err2 := fetchRemoteStatus(args.InReplyToURI, conf, deps)
	if err2 != nil {
		return err2
	}
	if parent == nil {
		// Unsupported or rejected parent; the reply stays unthreaded
		return nil
	}

	return deps.Database.UpdateStatusThread(status.Id, parent.Id)
}

// fetchRemoteStatus dereferences an object URI and runs it through the
// regular Create ingestion path, as if its origin had delivered it.
func fetchRemoteStatus(objectURI string, conf *util.AppConfig, deps *InboxDeps) (*domain.Status, error) {
	req, err := http.NewRequest("GET", objectURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "mastodon/1.0 ActivityPub")

	resp, err := deps.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("object fetch failed with status: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var obj ActivityObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("failed to parse object: %w", err)
	}
	attributedTo := stringOrID(obj.AttributedTo)
	if obj.ID == "" || attributedTo == "" {
		return nil, fmt.Errorf("object %s missing id or attributedTo", objectURI)
	}

	sender, err := GetOrFetchAccountWithDeps(attributedTo, deps)
	if err != nil {
		return nil, err
	}

	// Wrap the fetched object in a synthetic Create and reuse the full
	// ingestion pipeline, dedup lock included
	envelope := ActivityEnvelope{
		ID:     obj.ID + "#create",
		Type:   "Create",
		Actor:  json.RawMessage(`"` + attributedTo + `"`),
		Object: raw,
	}
	body, err := json.Marshal(&envelope)
	if err != nil {
		return nil, err
	}

	status, err := ProcessCreateWithDeps(body, sender, conf, deps)
	if err != nil {
		return nil, err
	}
	if status == nil {
		// Rejected or currently locked by another worker; retry finds it
		err, existing := deps.Database.ReadStatusByURI(obj.ID)
		if err == nil && existing != nil {
			return existing, nil
		}
		return nil, nil
	}
	return status, nil
}

// runDistribute fans a committed status out to the home feeds of the
// author's accepted local followers. Re-runs are absorbed by the unique
// constraint on timeline entries.
func runDistribute(payload string, deps *InboxDeps) error {
	var args distributePayload
	if err := json.Unmarshal([]byte(payload), &args); err != nil {
		return fmt.Errorf("bad payload: %w", err)
	}

	err, status := deps.Database.ReadStatusById(args.StatusId)
	if err != nil || status == nil {
		return nil
	}
	if status.Visibility == domain.VisibilityDirect {
		// Direct posts reach their audience through mentions, not feeds
		return nil
	}

	err, followers := deps.Database.ReadFollowersByAccountId(status.AccountId)
	if err != nil {
		return err
	}
	if followers == nil {
		return nil
	}

	for _, follower := range *followers {
		if !follower.IsLocal {
			continue
		}
		entry := &domain.TimelineEntry{
			Id:        uuid.New(),
			AccountId: follower.AccountId,
			StatusId:  status.Id,
			CreatedAt: time.Now(),
		}
		if err := deps.Database.CreateTimelineEntry(entry); err != nil {
			return err
		}
	}
	return nil
}

// runForwardReply relays the verbatim signed payload of a remote reply to
// a local post. The request is signed by the local reply target, but the
// body keeps the original author's LD signature untouched.
func runForwardReply(payload string, conf *util.AppConfig, deps *InboxDeps) error {
	var args forwardReplyPayload
	if err := json.Unmarshal([]byte(payload), &args); err != nil {
		return fmt.Errorf("bad payload: %w", err)
	}

	err, account := deps.Database.ReadAccById(args.AccountId)
	if err != nil || account == nil {
		return nil
	}

	privateKey, err := ParsePrivateKey(account.WebPrivateKey)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	req, err := http.NewRequest("POST", args.InboxURI, bytes.NewReader(args.Body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "mastodon/1.0 ActivityPub")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	keyID := fmt.Sprintf("https://%s/users/%s#main-key", conf.Conf.Domain, account.Username)
	if err := SignRequest(req, privateKey, keyID, args.Body); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	resp, err := deps.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote server returned status: %d", resp.StatusCode)
	}
	return nil
}

// runFetchEmoji mirrors a custom emoji image locally.
func runFetchEmoji(payload string, deps *InboxDeps) error {
	var args fetchEmojiPayload
	if err := json.Unmarshal([]byte(payload), &args); err != nil {
		return fmt.Errorf("bad payload: %w", err)
	}

	err, emoji := deps.Database.ReadCustomEmoji(args.Shortcode, args.Domain)
	if err != nil || emoji == nil {
		return nil
	}
	if emoji.ImagePath != "" {
		return nil
	}

	path, _, err := deps.Files.Fetch(emoji.ImageRemoteURL)
	if err != nil {
		return fmt.Errorf("emoji image fetch failed: %w", err)
	}
	return deps.Database.UpdateCustomEmojiImage(emoji.Id, path)
}
