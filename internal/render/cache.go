// Package render turns a packed job into uploaded sheet images.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// ImageCache holds decoded artwork keyed by URL so concurrent sheet renders
// share one fetch per source image. Access is guarded by a mutex; callers
// always receive an independent copy so compositing never races on a shared
// pixel buffer.
type ImageCache struct {
	mu     sync.Mutex
	images map[string]image.Image
	client *http.Client
}

func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Get returns a private copy of the decoded image at url, fetching and
// decoding it at most once per distinct URL.
func (c *ImageCache) Get(ctx context.Context, url string) (*image.NRGBA, error) {
	c.mu.Lock()
	img, ok := c.images[url]
	c.mu.Unlock()
	if ok {
		return imaging.Clone(img), nil
	}

	var data []byte
	err := retryWithBackoff(ctx, 3, func() error {
		var err error
		data, err = c.fetch(ctx, url)
		return err
	})
	if err != nil {
		return nil, err
	}

	decoded, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", url, err)
	}

	c.mu.Lock()
	c.images[url] = decoded
	c.mu.Unlock()

	return imaging.Clone(decoded), nil
}

func (c *ImageCache) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, &permanentError{err: err}
		}
		return nil, err
	}

	return io.ReadAll(resp.Body)
}

// permanentError marks fetch failures a retry cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// retryWithBackoff runs fn with exponential backoff between attempts.
// Storage URLs go stale for a moment right after upload, so transient fetch
// failures are worth a short wait.
func retryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		lastErr = err
		if i < len(backoffs) && i < maxRetries-1 {
			select {
			case <-time.After(backoffs[i]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
