package installer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// LocalFetcher handles file:// sources and bare absolute paths by copying
// the directory tree (or extracting an archive file) into targetDir.
type LocalFetcher struct {
	fs afero.Fs
}

// NewLocalFetcher builds a fetcher against fs, so tests can pass
// afero.NewMemMapFs() instead of touching the real filesystem.
func NewLocalFetcher(fs afero.Fs) *LocalFetcher {
	return &LocalFetcher{fs: fs}
}

func (f *LocalFetcher) Matches(url string) bool {
	return strings.HasPrefix(url, "file://") || strings.HasPrefix(url, "/")
}

func (f *LocalFetcher) Fetch(ctx context.Context, sourceURL, targetDir string) (map[string]any, error) {
	path := strings.TrimPrefix(sourceURL, "file://")

	info, err := f.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat source %s: %w", path, err)
	}

	if info.IsDir() {
		if err := f.copyTree(path, targetDir); err != nil {
			return nil, fmt.Errorf("copy tree %s: %w", path, err)
		}
		return map[string]any{"path": path, "type": "directory"}, nil
	}

	if strings.HasSuffix(path, ".tar.gz") || strings.HasSuffix(path, ".tgz") {
		file, err := f.fs.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open archive %s: %w", path, err)
		}
		defer func() { _ = file.Close() }()

		if err := extractTarGzStripComponents(file, targetDir, 1); err != nil {
			return nil, fmt.Errorf("extract archive %s: %w", path, err)
		}
		return map[string]any{"path": path, "type": "archive"}, nil
	}

	return nil, fmt.Errorf("unsupported local source: %s", path)
}

func (f *LocalFetcher) copyTree(src, dst string) error {
	if err := f.fs.MkdirAll(dst, 0755); err != nil {
		return err
	}

	entries, err := afero.ReadDir(f.fs, src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := src + "/" + entry.Name()
		dstPath := dst + "/" + entry.Name()

		if entry.IsDir() {
			if err := f.copyTree(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}

		if err := f.copyFile(srcPath, dstPath, entry.Mode()); err != nil {
			return err
		}
	}
	return nil
}

func (f *LocalFetcher) copyFile(src, dst string, mode os.FileMode) error {
	in, err := f.fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := f.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	_, err = io.Copy(out, in)
	return err
}
