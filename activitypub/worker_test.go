package activitypub

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samanthaghraves/mastodon/domain"
)

func TestRunDistribute(t *testing.T) {
	db := NewMockDatabase()
	deps := newTestDeps(db)
	sender := newRemoteSender()

	status := &domain.Status{
		Id:         uuid.New(),
		URI:        "https://remote.example/notes/1",
		AccountId:  sender.Id,
		Visibility: domain.VisibilityPublic,
	}
	db.Statuses[status.Id] = status

	localFollower := uuid.New()
	db.Followers[sender.Id] = []domain.Follow{
		{Id: uuid.New(), AccountId: localFollower, TargetAccountId: sender.Id, Accepted: true, IsLocal: true},
		{Id: uuid.New(), AccountId: uuid.New(), TargetAccountId: sender.Id, Accepted: false, IsLocal: true},
		{Id: uuid.New(), AccountId: uuid.New(), TargetAccountId: sender.Id, Accepted: true, IsLocal: false},
	}

	payload, _ := json.Marshal(distributePayload{StatusId: status.Id})
	if err := runDistribute(string(payload), deps); err != nil {
		t.Fatalf("distribution failed: %v", err)
	}

	if len(db.Timeline) != 1 {
		t.Fatalf("expected 1 timeline entry, got %d", len(db.Timeline))
	}
	if db.Timeline[0].AccountId != localFollower || db.Timeline[0].StatusId != status.Id {
		t.Error("timeline entry written for the wrong account")
	}

	// Retried delivery is absorbed
	if err := runDistribute(string(payload), deps); err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	if len(db.Timeline) != 1 {
		t.Errorf("rerun duplicated timeline entries: %d", len(db.Timeline))
	}
}

func TestRunDistributeSkipsDirect(t *testing.T) {
	db := NewMockDatabase()
	deps := newTestDeps(db)
	sender := newRemoteSender()

	status := &domain.Status{
		Id:         uuid.New(),
		AccountId:  sender.Id,
		Visibility: domain.VisibilityDirect,
	}
	db.Statuses[status.Id] = status
	db.Followers[sender.Id] = []domain.Follow{
		{Id: uuid.New(), AccountId: uuid.New(), TargetAccountId: sender.Id, Accepted: true, IsLocal: true},
	}

	payload, _ := json.Marshal(distributePayload{StatusId: status.Id})
	if err := runDistribute(string(payload), deps); err != nil {
		t.Fatalf("distribution failed: %v", err)
	}
	if len(db.Timeline) != 0 {
		t.Errorf("direct status must not reach home feeds, got %d entries", len(db.Timeline))
	}
}

func TestRunFetchEmoji(t *testing.T) {
	db := NewMockDatabase()
	deps := newTestDeps(db)
	files := &stubFiles{path: "/var/media/blob.png", mediaType: "image/png"}
	deps.Files = files

	emoji := &domain.CustomEmoji{
		Id:             uuid.New(),
		Shortcode:      "blob",
		Domain:         "remote.example",
		ImageRemoteURL: "https://remote.example/emoji/blob.png",
	}
	db.Emojis["blob@remote.example"] = emoji

	payload, _ := json.Marshal(fetchEmojiPayload{Shortcode: "blob", Domain: "remote.example"})
	if err := runFetchEmoji(string(payload), deps); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if emoji.ImagePath != "/var/media/blob.png" {
		t.Errorf("image path not recorded: %q", emoji.ImagePath)
	}

	// Already mirrored: no second download
	if err := runFetchEmoji(string(payload), deps); err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	if files.fetchCount() != 1 {
		t.Errorf("expected 1 download, got %d", files.fetchCount())
	}
}

func TestRunResolveThreadParentArrivedMeanwhile(t *testing.T) {
	db := NewMockDatabase()
	deps := newTestDeps(db)

	parent := &domain.Status{Id: uuid.New(), URI: "https://remote.example/notes/root"}
	child := &domain.Status{Id: uuid.New(), URI: "https://remote.example/notes/child", InReplyToURI: parent.URI}
	db.Statuses[parent.Id] = parent
	db.StatusesByURI[parent.URI] = parent
	db.Statuses[child.Id] = child
	db.StatusesByURI[child.URI] = child

	payload, _ := json.Marshal(resolveThreadPayload{StatusId: child.Id, InReplyToURI: parent.URI})
	if err := runResolveThread(string(payload), testConfig(), deps); err != nil {
		t.Fatalf("resolution failed: %v", err)
	}
	if child.InReplyToId == nil || *child.InReplyToId != parent.Id {
		t.Error("reply not linked to its parent")
	}
}

func TestRunResolveThreadParentKnownByAtomAlias(t *testing.T) {
	db := NewMockDatabase()
	deps := newTestDeps(db)

	alias := "tag:remote.example,2017-01-01:objectId=7:objectType=Status"
	parent := &domain.Status{Id: uuid.New(), URI: alias}
	child := &domain.Status{Id: uuid.New(), URI: "https://remote.example/notes/child", InReplyToURI: "https://remote.example/notes/7"}
	db.Statuses[parent.Id] = parent
	db.StatusesByURI[parent.URI] = parent
	db.Statuses[child.Id] = child
	db.StatusesByURI[child.URI] = child

	// No HTTP client call expected; the alias lookup settles it locally
	payload, _ := json.Marshal(resolveThreadPayload{
		StatusId:         child.Id,
		InReplyToURI:     child.InReplyToURI,
		InReplyToAtomURI: alias,
	})
	if err := runResolveThread(string(payload), testConfig(), deps); err != nil {
		t.Fatalf("resolution failed: %v", err)
	}
	if child.InReplyToId == nil || *child.InReplyToId != parent.Id {
		t.Error("reply not linked through the atom alias")
	}
}

func TestRunResolveThreadFetchesParent(t *testing.T) {
	db := NewMockDatabase()
	deps := newTestDeps(db)
	sender := newRemoteSender()
	db.RemoteAccounts[sender.ActorURI] = sender

	parentURI := "https://remote.example/notes/root"
	deps.HTTPClient = roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.Method == "GET" && req.URL.String() == parentURI {
			return jsonResponse(200, `{
				"id": "https://remote.example/notes/root",
				"type": "Note",
				"content": "the root post",
				"attributedTo": "https://remote.example/users/alice",
				"to": ["https://www.w3.org/ns/activitystreams#Public"]
			}`), nil
		}
		t.Errorf("unexpected request: %s %s", req.Method, req.URL)
		return jsonResponse(404, "{}"), nil
	})

	child := &domain.Status{Id: uuid.New(), URI: "https://remote.example/notes/child", InReplyToURI: parentURI}
	db.Statuses[child.Id] = child
	db.StatusesByURI[child.URI] = child

	payload, _ := json.Marshal(resolveThreadPayload{StatusId: child.Id, InReplyToURI: parentURI})
	if err := runResolveThread(string(payload), testConfig(), deps); err != nil {
		t.Fatalf("resolution failed: %v", err)
	}

	parent := db.StatusesByURI[parentURI]
	if parent == nil {
		t.Fatal("parent not materialized from its origin")
	}
	if parent.Text != "the root post" {
		t.Errorf("parent content wrong: %q", parent.Text)
	}
	if child.InReplyToId == nil || *child.InReplyToId != parent.Id {
		t.Error("reply not linked to the fetched parent")
	}
}

func TestRunResolveThreadVanishedStatus(t *testing.T) {
	db := NewMockDatabase()
	deps := newTestDeps(db)

	payload, _ := json.Marshal(resolveThreadPayload{StatusId: uuid.New(), InReplyToURI: "https://x.example/1"})
	if err := runResolveThread(string(payload), testConfig(), deps); err != nil {
		t.Errorf("vanished status must complete the task: %v", err)
	}
}

func TestRunTaskUnknownKindDropped(t *testing.T) {
	db := NewMockDatabase()
	deps := newTestDeps(db)

	task := &domain.QueueTask{Id: uuid.New(), Kind: "refurbish_gradients", Payload: "{}"}
	if err := runTask(task, testConfig(), deps); err != nil {
		t.Errorf("unknown kind must not be retried: %v", err)
	}
}

func TestProcessTaskQueueRetryBackoff(t *testing.T) {
	db := NewMockDatabase()
	deps := newTestDeps(db)

	db.EnqueueTask(domain.TaskResolveThread, "this is not json")

	processTaskQueue(testConfig(), deps)

	if len(db.Tasks) != 1 {
		t.Fatalf("failed task must stay queued, got %d", len(db.Tasks))
	}
	if db.Tasks[0].Attempts != 1 {
		t.Errorf("attempts not incremented: %d", db.Tasks[0].Attempts)
	}
	if !db.Tasks[0].NextRetryAt.After(time.Now()) {
		t.Error("retry must be scheduled in the future")
	}
}

func TestProcessTaskQueueGivesUp(t *testing.T) {
	db := NewMockDatabase()
	deps := newTestDeps(db)

	db.EnqueueTask(domain.TaskResolveThread, "this is not json")
	db.Tasks[0].Attempts = 9
	db.Tasks[0].NextRetryAt = time.Now().Add(-time.Minute)

	processTaskQueue(testConfig(), deps)

	if len(db.Tasks) != 0 {
		t.Errorf("task must be dropped after exhausting attempts, %d left", len(db.Tasks))
	}
}

func TestProcessTaskQueueDeletesCompleted(t *testing.T) {
	db := NewMockDatabase()
	deps := newTestDeps(db)

	// resolve_thread for a vanished status completes immediately
	payload, _ := json.Marshal(resolveThreadPayload{StatusId: uuid.New(), InReplyToURI: "https://x.example/1"})
	db.EnqueueTask(domain.TaskResolveThread, string(payload))

	processTaskQueue(testConfig(), deps)

	if len(db.Tasks) != 0 {
		t.Errorf("completed task not deleted, %d left", len(db.Tasks))
	}
}
