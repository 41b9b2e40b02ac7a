package nexus

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cavaliergopher/grab/v3"
)

// ProgressCallback is called during a download with progress info.
type ProgressCallback func(bytesComplete, totalBytes int64, percentage int)

// DownloadArchive fetches url into destDir and returns the path of the
// written file, named after the response. The callback may be nil.
func (c *Client) DownloadArchive(url, destDir string, callback ProgressCallback) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download dir '%s': %w", destDir, err)
	}

	req, err := grab.NewRequest(destDir, url)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.HTTPRequest.Header.Set("User-Agent", c.UserAgent)
	if c.APIKey != "" {
		req.HTTPRequest.Header.Set("apikey", c.APIKey)
	}

	client := grab.NewClient()
	client.UserAgent = c.UserAgent
	resp := client.Do(req)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	lastPercentage := -1
	for done := false; !done; {
		select {
		case <-ticker.C:
			if callback != nil && resp.Size() > 0 {
				percentage := int(resp.Progress() * 100)
				if percentage != lastPercentage {
					callback(resp.BytesComplete(), resp.Size(), percentage)
					lastPercentage = percentage
				}
			}
		case <-resp.Done:
			if callback != nil && resp.Size() > 0 {
				callback(resp.BytesComplete(), resp.Size(), 100)
			}
			done = true
		}
	}

	if err := resp.Err(); err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	return resp.Filename, nil
}

// FileMD5 hashes a local archive the way the md5 search endpoint
// expects it.
func FileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file '%s': %w", path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file '%s': %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
