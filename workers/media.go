// Package workers holds long-running background loops.
package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"
)

// Uploader uploads a mirrored photo to S3-compatible storage.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// publicURLer is implemented by uploaders that can name where a mirrored key
// is served from; the worker logs that address instead of the bare key.
type publicURLer interface {
	PublicURL(key string) string
}

// MediaWorker mirrors listing photos into object storage in the background.
// Notifications never wait on it: Enqueue drops URLs when the queue is full,
// and the worker deduplicates by URL so re-notified listings are not
// downloaded twice.
type MediaWorker struct {
	httpClient *http.Client
	uploader   Uploader
	queue      chan string

	mu   sync.Mutex
	seen map[string]bool
}

func NewMediaWorker(httpClient *http.Client, uploader Uploader, queueSize int) *MediaWorker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if queueSize <= 0 {
		queueSize = 512
	}
	return &MediaWorker{
		httpClient: httpClient,
		uploader:   uploader,
		queue:      make(chan string, queueSize),
		seen:       make(map[string]bool),
	}
}

// Enqueue submits photo URLs for mirroring. Non-blocking; URLs already seen
// or not fitting into the queue are dropped.
func (w *MediaWorker) Enqueue(urls ...string) {
	for _, url := range urls {
		if url == "" {
			continue
		}

		w.mu.Lock()
		dup := w.seen[url]
		if !dup {
			w.seen[url] = true
		}
		w.mu.Unlock()
		if dup {
			continue
		}

		select {
		case w.queue <- url:
		default:
			log.Printf("Media worker: queue full, dropping %s", url)
			w.mu.Lock()
			delete(w.seen, url)
			w.mu.Unlock()
		}
	}
}

// Run starts the media worker loop.
func (w *MediaWorker) Run(ctx context.Context) {
	log.Println("Media worker started")
	for {
		select {
		case <-ctx.Done():
			log.Println("Media worker stopping")
			return
		case url := <-w.queue:
			if key, size, err := w.process(ctx, url); err != nil {
				log.Printf("Media worker: failed %s: %v", url, err)
			} else {
				location := key
				if pub, ok := w.uploader.(publicURLer); ok {
					location = pub.PublicURL(key)
				}
				log.Printf("Media worker: mirrored %s -> %s (%d bytes)", url, location, size)
			}
			// Rate limit between downloads
			time.Sleep(200 * time.Millisecond)
		}
	}
}

// process downloads one photo, hashes it and uploads it under a
// content-addressed key.
func (w *MediaWorker) process(ctx context.Context, url string) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", 0, fmt.Errorf("download status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 50*1024*1024))
	if err != nil {
		return "", 0, fmt.Errorf("read body: %w", err)
	}

	hash := sha256.Sum256(data)
	contentHash := hex.EncodeToString(hash[:])

	ext := guessExtension(url, resp.Header.Get("Content-Type"))
	key := fmt.Sprintf("media/%s/%s%s", contentHash[:2], contentHash, ext)

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	if err := w.uploader.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", 0, fmt.Errorf("upload: %w", err)
	}

	return key, int64(len(data)), nil
}

// guessExtension determines file extension from URL or content-type
func guessExtension(url, contentType string) string {
	ext := strings.ToLower(path.Ext(url))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	if isImageExt(ext) {
		return ext
	}

	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff":
		return true
	}
	return false
}

// NoOpUploader drains its input without uploading. Used when S3 is not
// configured.
type NoOpUploader struct{}

func (u *NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	io.Copy(io.Discard, data)
	return nil
}
