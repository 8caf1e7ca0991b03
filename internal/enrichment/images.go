package enrichment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// UploadsPrefix is the URL path the image folder is served under.
const UploadsPrefix = "/uploads"

const maxImageBytes = 10 << 20

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// ImageStore downloads product images into a local folder.
type ImageStore struct {
	dir  string
	http *http.Client
}

func NewImageStore(dir string, timeout time.Duration) *ImageStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ImageStore{dir: dir, http: &http.Client{Timeout: timeout}}
}

// fileName derives "<barcode><ext>" with anything unsafe for a path replaced.
func fileName(barcode, imageURL string) string {
	ext := ".jpg"
	if u, err := url.Parse(imageURL); err == nil {
		if e := strings.ToLower(path.Ext(u.Path)); imageExts[e] {
			ext = e
		}
	}
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, barcode)
	return safe + ext
}

// Save stores the image for barcode and returns its public reference. An
// already downloaded file is reused.
func (s *ImageStore) Save(ctx context.Context, barcode, imageURL string) (string, error) {
	if barcode == "" {
		return "", fmt.Errorf("barcode is empty")
	}
	name := fileName(barcode, imageURL)
	ref := UploadsPrefix + "/" + name
	target := filepath.Join(s.dir, name)

	if _, err := os.Stat(target); err == nil {
		return ref, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create image folder: %w", err)
	}

	// A partial download must never be picked up as an existing image.
	tmp, err := os.CreateTemp(s.dir, name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, io.LimitReader(resp.Body, maxImageBytes)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return ref, nil
}
