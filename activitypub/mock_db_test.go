package activitypub

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samanthaghraves/mastodon/domain"
)

type mockLock struct {
	holder  string
	expires time.Time
}

// MockDatabase is an in-memory Database used across the package tests.
// All methods are safe for concurrent use; FailOn forces a named method
// to return an error.
type MockDatabase struct {
	mu sync.Mutex

	Accounts       map[uuid.UUID]*domain.Account
	RemoteAccounts map[string]*domain.RemoteAccount // keyed by actor URI

	Statuses      map[uuid.UUID]*domain.Status
	StatusesByURI map[string]*domain.Status

	Attachments map[uuid.UUID]*domain.MediaAttachment
	Emojis      map[string]*domain.CustomEmoji // shortcode + "@" + domain

	Conversations     map[string]*domain.Conversation // keyed by URI
	ConversationsById map[uuid.UUID]*domain.Conversation

	Tombstones map[string]bool
	locks      map[string]mockLock

	Tasks []domain.QueueTask

	Followers    map[uuid.UUID][]domain.Follow // keyed by followed account
	Timeline     []domain.TimelineEntry
	timelineSeen map[string]bool

	// Coarse call trace of the write-side methods, for ordering assertions
	Sequence []string

	// Arguments of the most recent CreateStatus call
	CreateStatusCalls int
	LastTagNames      []string
	LastMentions      []*domain.Mention
	LastEmojis        []*domain.CustomEmoji
	LastAttachmentIds []uuid.UUID

	FailOn map[string]error
}

func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		Accounts:          make(map[uuid.UUID]*domain.Account),
		RemoteAccounts:    make(map[string]*domain.RemoteAccount),
		Statuses:          make(map[uuid.UUID]*domain.Status),
		StatusesByURI:     make(map[string]*domain.Status),
		Attachments:       make(map[uuid.UUID]*domain.MediaAttachment),
		Emojis:            make(map[string]*domain.CustomEmoji),
		Conversations:     make(map[string]*domain.Conversation),
		ConversationsById: make(map[uuid.UUID]*domain.Conversation),
		Tombstones:        make(map[string]bool),
		locks:             make(map[string]mockLock),
		Followers:         make(map[uuid.UUID][]domain.Follow),
		timelineSeen:      make(map[string]bool),
		FailOn:            make(map[string]error),
	}
}

var _ Database = (*MockDatabase)(nil)

func (m *MockDatabase) fail(method string) error {
	return m.FailOn[method]
}

func (m *MockDatabase) ReadAccByUsername(username string) (error, *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadAccByUsername"); err != nil {
		return err, nil
	}
	for _, acc := range m.Accounts {
		if acc.Username == username {
			return nil, acc
		}
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) ReadAccById(id uuid.UUID) (error, *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadAccById"); err != nil {
		return err, nil
	}
	if acc, ok := m.Accounts[id]; ok {
		return nil, acc
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) ReadRemoteAccountByActorURI(actorURI string) (error, *domain.RemoteAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadRemoteAccountByActorURI"); err != nil {
		return err, nil
	}
	if acc, ok := m.RemoteAccounts[actorURI]; ok {
		return nil, acc
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) ReadRemoteAccountById(id uuid.UUID) (error, *domain.RemoteAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadRemoteAccountById"); err != nil {
		return err, nil
	}
	for _, acc := range m.RemoteAccounts {
		if acc.Id == id {
			return nil, acc
		}
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) CreateRemoteAccount(acc *domain.RemoteAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateRemoteAccount"); err != nil {
		return err
	}
	if _, exists := m.RemoteAccounts[acc.ActorURI]; exists {
		return fmt.Errorf("UNIQUE constraint failed: remote_accounts.actor_uri")
	}
	m.RemoteAccounts[acc.ActorURI] = acc
	return nil
}

func (m *MockDatabase) UpdateRemoteAccount(acc *domain.RemoteAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateRemoteAccount"); err != nil {
		return err
	}
	if existing, ok := m.RemoteAccounts[acc.ActorURI]; ok {
		existing.DisplayName = acc.DisplayName
		existing.Summary = acc.Summary
		existing.InboxURI = acc.InboxURI
		existing.SharedInboxURI = acc.SharedInboxURI
		existing.OutboxURI = acc.OutboxURI
		existing.FollowersURI = acc.FollowersURI
		existing.PublicKeyPem = acc.PublicKeyPem
		existing.AvatarURL = acc.AvatarURL
		existing.LastFetchedAt = time.Now()
	}
	return nil
}

func (m *MockDatabase) CreateStatus(status *domain.Status, tagNames []string, mentions []*domain.Mention, emojis []*domain.CustomEmoji, attachmentIds []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateStatus"); err != nil {
		return err
	}
	if _, exists := m.StatusesByURI[status.URI]; exists {
		return fmt.Errorf("UNIQUE constraint failed: statuses.uri")
	}
	m.Sequence = append(m.Sequence, "CreateStatus")
	m.Statuses[status.Id] = status
	m.StatusesByURI[status.URI] = status

	m.CreateStatusCalls++
	m.LastTagNames = tagNames
	m.LastMentions = mentions
	m.LastEmojis = emojis
	m.LastAttachmentIds = attachmentIds

	for _, emoji := range emojis {
		stored := *emoji
		stored.ImagePath = ""
		m.Emojis[emoji.Shortcode+"@"+emoji.Domain] = &stored
	}

	for _, id := range attachmentIds {
		if att, ok := m.Attachments[id]; ok && att.StatusId == nil {
			statusId := status.Id
			att.StatusId = &statusId
		}
	}
	return nil
}

func (m *MockDatabase) ReadStatusByURI(uri string) (error, *domain.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadStatusByURI"); err != nil {
		return err, nil
	}
	if status, ok := m.StatusesByURI[uri]; ok {
		return nil, status
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) ReadStatusById(id uuid.UUID) (error, *domain.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadStatusById"); err != nil {
		return err, nil
	}
	if status, ok := m.Statuses[id]; ok {
		return nil, status
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) UpdateStatusThread(id uuid.UUID, inReplyToId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateStatusThread"); err != nil {
		return err
	}
	if status, ok := m.Statuses[id]; ok {
		parentId := inReplyToId
		status.InReplyToId = &parentId
	}
	return nil
}

func (m *MockDatabase) CreateMediaAttachment(att *domain.MediaAttachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateMediaAttachment"); err != nil {
		return err
	}
	m.Attachments[att.Id] = att
	return nil
}

func (m *MockDatabase) UpdateMediaAttachmentFile(id uuid.UUID, filePath string, fileType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateMediaAttachmentFile"); err != nil {
		return err
	}
	if att, ok := m.Attachments[id]; ok {
		att.FilePath = filePath
		att.FileType = fileType
	}
	return nil
}

func (m *MockDatabase) ReadCustomEmoji(shortcode string, emojiDomain string) (error, *domain.CustomEmoji) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadCustomEmoji"); err != nil {
		return err, nil
	}
	if emoji, ok := m.Emojis[shortcode+"@"+emojiDomain]; ok {
		return nil, emoji
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) UpdateCustomEmojiImage(id uuid.UUID, imagePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateCustomEmojiImage"); err != nil {
		return err
	}
	for _, emoji := range m.Emojis {
		if emoji.Id == id {
			emoji.ImagePath = imagePath
		}
	}
	return nil
}

func (m *MockDatabase) ReadConversationById(id uuid.UUID) (error, *domain.Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadConversationById"); err != nil {
		return err, nil
	}
	if conv, ok := m.ConversationsById[id]; ok {
		return nil, conv
	}
	return sql.ErrNoRows, nil
}

func (m *MockDatabase) GetOrCreateConversationByURI(uri string) (error, *domain.Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetOrCreateConversationByURI"); err != nil {
		return err, nil
	}
	if conv, ok := m.Conversations[uri]; ok {
		return nil, conv
	}
	conv := &domain.Conversation{Id: uuid.New(), URI: uri, CreatedAt: time.Now()}
	m.Conversations[uri] = conv
	m.ConversationsById[conv.Id] = conv
	return nil, conv
}

func (m *MockDatabase) HasTombstone(uri string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("HasTombstone"); err != nil {
		return false, err
	}
	return m.Tombstones[uri], nil
}

func (m *MockDatabase) CreateTombstone(uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateTombstone"); err != nil {
		return err
	}
	m.Tombstones[uri] = true
	return nil
}

func (m *MockDatabase) AcquireLock(key string, holder string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("AcquireLock"); err != nil {
		return false, err
	}
	if l, held := m.locks[key]; held && l.expires.After(time.Now()) {
		return false, nil
	}
	m.locks[key] = mockLock{holder: holder, expires: time.Now().Add(ttl)}
	return true, nil
}

func (m *MockDatabase) ReleaseLock(key string, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReleaseLock"); err != nil {
		return err
	}
	m.Sequence = append(m.Sequence, "ReleaseLock")
	if l, held := m.locks[key]; held && l.holder == holder {
		delete(m.locks, key)
	}
	return nil
}

func (m *MockDatabase) EnqueueTask(kind string, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("EnqueueTask"); err != nil {
		return err
	}
	m.Sequence = append(m.Sequence, "EnqueueTask")
	m.Tasks = append(m.Tasks, domain.QueueTask{
		Id:          uuid.New(),
		Kind:        kind,
		Payload:     payload,
		NextRetryAt: time.Now(),
		CreatedAt:   time.Now(),
	})
	return nil
}

func (m *MockDatabase) ReadPendingTasks(limit int) (error, *[]domain.QueueTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadPendingTasks"); err != nil {
		return err, nil
	}
	var pending []domain.QueueTask
	for _, task := range m.Tasks {
		if !task.NextRetryAt.After(time.Now()) {
			pending = append(pending, task)
			if len(pending) == limit {
				break
			}
		}
	}
	return nil, &pending
}

func (m *MockDatabase) UpdateTaskAttempt(id uuid.UUID, attempts int, nextRetryAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateTaskAttempt"); err != nil {
		return err
	}
	for i := range m.Tasks {
		if m.Tasks[i].Id == id {
			m.Tasks[i].Attempts = attempts
			m.Tasks[i].NextRetryAt = nextRetryAt
		}
	}
	return nil
}

func (m *MockDatabase) DeleteTask(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteTask"); err != nil {
		return err
	}
	for i := range m.Tasks {
		if m.Tasks[i].Id == id {
			m.Tasks = append(m.Tasks[:i], m.Tasks[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockDatabase) ReadFollowersByAccountId(accountId uuid.UUID) (error, *[]domain.Follow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadFollowersByAccountId"); err != nil {
		return err, nil
	}
	var accepted []domain.Follow
	for _, follow := range m.Followers[accountId] {
		if follow.Accepted {
			accepted = append(accepted, follow)
		}
	}
	return nil, &accepted
}

func (m *MockDatabase) CreateTimelineEntry(entry *domain.TimelineEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateTimelineEntry"); err != nil {
		return err
	}
	key := entry.AccountId.String() + "/" + entry.StatusId.String()
	if m.timelineSeen[key] {
		return nil
	}
	m.timelineSeen[key] = true
	m.Timeline = append(m.Timeline, *entry)
	return nil
}

// tasksOfKind returns the queued tasks of one kind, in enqueue order.
func (m *MockDatabase) tasksOfKind(kind string) []domain.QueueTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.QueueTask
	for _, task := range m.Tasks {
		if task.Kind == kind {
			out = append(out, task)
		}
	}
	return out
}
