package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// HTTPFetcher handles http(s):// sources. Archives (.tar.gz/.tgz) are
// extracted; anything else is saved as-is under targetDir.
type HTTPFetcher struct {
	client *retryablehttp.Client
}

// NewHTTPFetcher builds a fetcher using a retrying HTTP client.
func NewHTTPFetcher() *HTTPFetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Matches(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

func (f *HTTPFetcher) Fetch(ctx context.Context, sourceURL, targetDir string) (map[string]any, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", sourceURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download %s returned status %d", sourceURL, resp.StatusCode)
	}

	isArchive := strings.HasSuffix(sourceURL, ".tar.gz") || strings.HasSuffix(sourceURL, ".tgz")

	if isArchive {
		if err := extractTarGzStripComponents(resp.Body, targetDir, 1); err != nil {
			return nil, fmt.Errorf("extract archive: %w", err)
		}
		return map[string]any{"url": sourceURL, "extracted": true}, nil
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, fmt.Errorf("create target directory: %w", err)
	}
	name := filepath.Base(sourceURL)
	if name == "" || name == "." || name == "/" {
		name = "payload"
	}
	destPath := filepath.Join(targetDir, name)

	out, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", destPath, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := out.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("write %s: %w", destPath, err)
	}

	return map[string]any{"url": sourceURL, "extracted": false, "path": destPath}, nil
}
