package activitypub

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samanthaghraves/mastodon/util"
)

// maxMediaBytes caps a single remote download at 8MB
const maxMediaBytes = 8 << 20

// LocalFileRetriever downloads remote media into a local directory. The
// stored media type comes from content sniffing, never from the remote
// server's declaration.
type LocalFileRetriever struct {
	client HTTPClient
	dir    string
}

func NewLocalFileRetriever(client HTTPClient, dir string) *LocalFileRetriever {
	return &LocalFileRetriever{client: client, dir: dir}
}

func (r *LocalFileRetriever) Fetch(url string) (string, string, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", util.Name+"/1.0 ActivityPub")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("media fetch failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return "", "", fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > maxMediaBytes {
		return "", "", fmt.Errorf("media exceeds %d byte limit", maxMediaBytes)
	}

	mtype := mimetype.Detect(data)

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create media dir: %w", err)
	}

	path := filepath.Join(r.dir, uuid.New().String()+mtype.Extension())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write media file: %w", err)
	}

	return path, mtype.String(), nil
}

// Ensure LocalFileRetriever implements FileRetriever interface
var _ FileRetriever = (*LocalFileRetriever)(nil)
