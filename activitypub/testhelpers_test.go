package activitypub

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samanthaghraves/mastodon/domain"
	"github.com/samanthaghraves/mastodon/util"
)

// roundTripFunc lets a test supply the HTTP client as a plain function.
type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/activity+json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type stubPolicy struct {
	blocked     map[string]bool
	rejectMedia map[string]bool
	err         error
}

func (p *stubPolicy) IsBlocked(domain string) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	return p.blocked[domain], nil
}

func (p *stubPolicy) RejectsMedia(domain string) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	return p.rejectMedia[domain], nil
}

type stubFiles struct {
	mu        sync.Mutex
	calls     []string
	path      string
	mediaType string
	err       error
}

func (f *stubFiles) Fetch(url string) (string, string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if f.err != nil {
		return "", "", f.err
	}
	return f.path, f.mediaType, nil
}

func (f *stubFiles) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type stubDetector struct {
	lang string
}

func (d stubDetector) Detect(text string) string {
	return d.lang
}

// newTestDeps wires a dependency set whose HTTP client fails loudly on any
// unexpected outbound request. Tests replace collaborators as needed.
func newTestDeps(db *MockDatabase) *InboxDeps {
	return &InboxDeps{
		Database: db,
		HTTPClient: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("unexpected http request: " + req.URL.String())
		}),
		Policy:   &stubPolicy{},
		Files:    &stubFiles{path: "/var/media/stored.png", mediaType: "image/png"},
		Detector: stubDetector{},
	}
}

func testConfig() *util.AppConfig {
	conf := &util.AppConfig{}
	conf.Conf.Host = "127.0.0.1"
	conf.Conf.HttpPort = 8787
	conf.Conf.Domain = "social.example"
	conf.Conf.MediaDir = "/var/media"
	return conf
}

// newRemoteSender returns a cached remote actor on remote.example.
func newRemoteSender() *domain.RemoteAccount {
	return &domain.RemoteAccount{
		Id:           uuid.New(),
		Username:     "alice",
		Domain:       "remote.example",
		ActorURI:     "https://remote.example/users/alice",
		InboxURI:     "https://remote.example/users/alice/inbox",
		FollowersURI: "https://remote.example/users/alice/followers",
		PublicKeyPem: "irrelevant",
		LastFetchedAt: time.Now(),
	}
}

// createBody wraps an embedded object in a Create envelope from the given
// actor, optionally carrying an LD signature.
func createBody(actorURI string, objectJSON string, signed bool) []byte {
	signature := ""
	if signed {
		signature = `"signature": {"type": "RsaSignature2017", "signatureValue": "xyz"},`
	}
	return []byte(fmt.Sprintf(`{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id": "%s#create",
		"type": "Create",
		"actor": "%s",
		%s
		"object": %s
	}`, actorURI, actorURI, signature, objectJSON))
}
