package asr

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wirgen/wyoming-vosk/internal/infra"
)

// DefaultModelBaseURL is where Alpha Cephei publishes the model archives.
const DefaultModelBaseURL = "https://alphacephei.com/vosk/models"

// Downloader fetches model archives and unpacks them into the download
// directory. Archives hold a single top-level directory named after the
// model.
type Downloader struct {
	baseURL string
	client  *http.Client
	retry   infra.RetryConfig
	logger  *slog.Logger
}

// NewDownloader creates a downloader; an empty baseURL means the official
// model site.
func NewDownloader(baseURL string, logger *slog.Logger) *Downloader {
	if baseURL == "" {
		baseURL = DefaultModelBaseURL
	}
	return &Downloader{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Minute},
		retry:   infra.DefaultRetryConfig(),
		logger:  logger.With("component", "download"),
	}
}

// Ensure returns the directory holding the model, searching dataDirs first
// and downloading the archive when no directory has it.
func (d *Downloader) Ensure(ctx context.Context, model string, dataDirs []string, downloadDir string) (string, error) {
	for _, dir := range dataDirs {
		candidate := filepath.Join(dir, model)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			d.logger.Debug("found model", "model", model, "path", candidate)
			return candidate, nil
		}
	}

	if err := d.download(ctx, model, downloadDir); err != nil {
		return "", err
	}
	target := filepath.Join(downloadDir, model)
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		return "", fmt.Errorf("asr: archive for %s did not contain a %s directory", model, model)
	}
	return target, nil
}

func (d *Downloader) download(ctx context.Context, model, downloadDir string) error {
	url := fmt.Sprintf("%s/%s.zip", d.baseURL, model)
	d.logger.Info("downloading model", "model", model, "url", url)
	started := time.Now()

	archive, err := os.CreateTemp("", model+"-*.zip")
	if err != nil {
		return fmt.Errorf("asr: creating temp file: %w", err)
	}
	defer os.Remove(archive.Name())
	defer archive.Close()

	err = infra.WithRetry(ctx, d.retry, func(ctx context.Context) error {
		return d.fetch(ctx, url, archive)
	})
	if err != nil {
		return fmt.Errorf("asr: downloading %s: %w", url, err)
	}

	if err := extractZip(archive.Name(), downloadDir); err != nil {
		return fmt.Errorf("asr: extracting %s: %w", model, err)
	}
	d.logger.Info("model downloaded", "model", model, "duration", time.Since(started))
	return nil
}

func (d *Downloader) fetch(ctx context.Context, url string, dst *os.File) error {
	// A failed attempt may have written partial data; start clean.
	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		return infra.Permanent(err)
	}
	if err := dst.Truncate(0); err != nil {
		return infra.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return infra.Permanent(err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %s", resp.Status)
		if infra.RetryableStatus(resp.StatusCode) {
			return err
		}
		return infra.Permanent(err)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return err
	}
	return dst.Sync()
}

// extractZip unpacks an archive under dir, rejecting entries that would
// escape it.
func extractZip(path, dir string) error {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, file := range reader.File {
		if err := extractEntry(file, dir); err != nil {
			return fmt.Errorf("%s: %w", file.Name, err)
		}
	}
	return nil
}

func extractEntry(file *zip.File, dir string) error {
	name := filepath.Clean(filepath.FromSlash(file.Name))
	if filepath.IsAbs(name) || name == ".." || strings.HasPrefix(name, ".."+string(filepath.Separator)) {
		return fmt.Errorf("unsafe path in archive")
	}
	target := filepath.Join(dir, name)

	if file.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, file.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
