package activitypub

import (
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestLocalFileRetrieverStoresSniffedFile(t *testing.T) {
	client := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 200,
			// Declared type lies; sniffing must win
			Header: http.Header{"Content-Type": []string{"text/plain"}},
			Body:   io.NopCloser(strings.NewReader(string(pngHeader))),
		}, nil
	})

	retriever := NewLocalFileRetriever(client, t.TempDir())
	path, mediaType, err := retriever.Fetch("https://remote.example/media/1")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if mediaType != "image/png" {
		t.Errorf("expected sniffed image/png, got %s", mediaType)
	}
	if !strings.HasSuffix(path, ".png") {
		t.Errorf("expected .png extension, got %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if string(data) != string(pngHeader) {
		t.Error("stored bytes differ from the download")
	}
}

func TestLocalFileRetrieverRejectsErrors(t *testing.T) {
	client := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 404,
			Body:       io.NopCloser(strings.NewReader("")),
		}, nil
	})

	retriever := NewLocalFileRetriever(client, t.TempDir())
	if _, _, err := retriever.Fetch("https://remote.example/media/missing"); err == nil {
		t.Error("non-200 response must fail the fetch")
	}
}

func TestLocalFileRetrieverSizeLimit(t *testing.T) {
	client := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		oversized := io.LimitReader(neverEndingReader{}, maxMediaBytes+1)
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(oversized),
		}, nil
	})

	retriever := NewLocalFileRetriever(client, t.TempDir())
	if _, _, err := retriever.Fetch("https://remote.example/media/huge"); err == nil {
		t.Error("oversized media must be rejected")
	}
}

type neverEndingReader struct{}

func (neverEndingReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'x'
	}
	return len(p), nil
}
