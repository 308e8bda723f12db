package workers

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingUploader struct {
	mu      sync.Mutex
	keys    []string
	types   []string
	payload []string
}

func (u *recordingUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.keys = append(u.keys, key)
	u.types = append(u.types, contentType)
	u.payload = append(u.payload, string(body))
	return nil
}

func (u *recordingUploader) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func TestProcess_ContentAddressedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		io.WriteString(w, "fake image bytes")
	}))
	defer srv.Close()

	uploader := &recordingUploader{}
	worker := NewMediaWorker(srv.Client(), uploader, 0)

	key, size, err := worker.process(context.Background(), srv.URL+"/photo.jpg")
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if size != int64(len("fake image bytes")) {
		t.Fatalf("unexpected size %d", size)
	}
	if !strings.HasPrefix(key, "media/") || !strings.HasSuffix(key, ".jpg") {
		t.Fatalf("unexpected key %s", key)
	}
	if len(uploader.keys) != 1 || uploader.keys[0] != key {
		t.Fatalf("uploader saw keys %v, want %s", uploader.keys, key)
	}
	if uploader.payload[0] != "fake image bytes" {
		t.Fatalf("uploader got payload %q", uploader.payload[0])
	}

	// Same bytes, same key.
	again, _, err := worker.process(context.Background(), srv.URL+"/other-name.jpg")
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if again != key {
		t.Fatalf("expected content-addressed key to repeat, got %s vs %s", again, key)
	}
}

func TestProcess_DownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	worker := NewMediaWorker(srv.Client(), &recordingUploader{}, 0)
	if _, _, err := worker.process(context.Background(), srv.URL+"/missing.jpg"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestEnqueue_DeduplicatesURLs(t *testing.T) {
	worker := NewMediaWorker(nil, &recordingUploader{}, 8)

	worker.Enqueue("https://cdn.flatfox.ch/a.jpg", "https://cdn.flatfox.ch/a.jpg", "", "https://cdn.flatfox.ch/b.jpg")
	worker.Enqueue("https://cdn.flatfox.ch/a.jpg")

	if got := len(worker.queue); got != 2 {
		t.Fatalf("expected 2 queued urls, got %d", got)
	}
}

func TestRun_DrainsQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "img")
	}))
	defer srv.Close()

	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	uploader := &recordingUploader{}
	worker := NewMediaWorker(srv.Client(), uploader, 8)
	worker.Enqueue(srv.URL + "/a.jpg")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		uploader.mu.Lock()
		n := len(uploader.keys)
		uploader.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker never processed the queued url")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done

	if !strings.Contains(logs.String(), "https://cdn.test/media/") {
		t.Fatalf("expected mirror log to name the public location, got:\n%s", logs.String())
	}
}

func TestGuessExtension(t *testing.T) {
	cases := []struct {
		url         string
		contentType string
		want        string
	}{
		{"https://cdn.flatfox.ch/a.png", "", ".png"},
		{"https://cdn.flatfox.ch/a.jpg?size=large", "", ".jpg"},
		{"https://cdn.flatfox.ch/a", "image/webp", ".webp"},
		{"https://cdn.flatfox.ch/a", "", ".jpg"},
		{"https://cdn.flatfox.ch/a.exe", "image/png", ".png"},
	}
	for _, tc := range cases {
		if got := guessExtension(tc.url, tc.contentType); got != tc.want {
			t.Fatalf("guessExtension(%q, %q) = %q, want %q", tc.url, tc.contentType, got, tc.want)
		}
	}
}
