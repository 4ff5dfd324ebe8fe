package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"pharos/internal/catalog"
	"pharos/internal/fileutil"
	"pharos/internal/logging"
	"pharos/internal/preflight"
	"pharos/internal/progress"
	"pharos/internal/services"
	"pharos/internal/staging"
)

const (
	// DefaultChunkSize is the transfer read size.
	DefaultChunkSize = 64 * 1024
	bytesPerMiB      = 1024 * 1024
)

// HTTPDoer describes the HTTP client used for transfers.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns a client whose timeout bounds connection setup and
// response headers, not the body stream.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		transport.ResponseHeaderTimeout = timeout
		transport.TLSHandshakeTimeout = timeout
	}
	return &http.Client{Transport: transport}
}

// TransferResult describes one completed transfer.
type TransferResult struct {
	Path        string
	Bytes       int64
	Fingerprint string
	Elapsed     time.Duration
}

// FormatSpeed renders throughput in MiB per second. Zero elapsed time
// reports zero.
func FormatSpeed(bytes int64, elapsed time.Duration) float64 {
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(bytes) / bytesPerMiB / seconds
}

// transfer streams pkg into the staging directory and fingerprints it. On
// failure the partial file is removed and the error wraps
// services.ErrTransfer.
func (w *Worker) transfer(ctx context.Context, pkg *catalog.Package) (TransferResult, error) {
	if pkg == nil {
		return TransferResult{}, services.Wrap(services.ErrTransfer, "download", "validate", "nil package", nil)
	}
	if err := staging.ValidateArchiveName(pkg.Name); err != nil {
		return TransferResult{}, services.Wrap(services.ErrTransfer, "download", "validate", "unsafe archive name", err)
	}
	if pkg.DownloadURL == "" {
		return TransferResult{}, services.Wrap(services.ErrTransfer, "download", "validate", "no download url for "+pkg.Name, nil)
	}
	if err := os.MkdirAll(w.stagingDir, 0o755); err != nil {
		return TransferResult{}, services.Wrap(services.ErrTransfer, "download", "prepare staging", w.stagingDir, err)
	}
	if pkg.SizeBytes != nil && *pkg.SizeBytes > 0 {
		if err := preflight.EnsureFreeSpace(w.stagingDir, uint64(*pkg.SizeBytes)+w.minFree); err != nil {
			return TransferResult{}, services.Wrap(services.ErrTransfer, "download", "free space", pkg.Name, err)
		}
	}

	dest := staging.ArchivePath(w.stagingDir, pkg.Name)
	result, err := w.stream(ctx, pkg, dest)
	if err != nil {
		if rmErr := os.Remove(dest); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			w.logger.Warn("partial archive not removed",
				logging.String("path", dest),
				logging.Error(rmErr),
			)
		}
		return TransferResult{}, services.Wrap(services.ErrTransfer, "download", "stream", pkg.ArchiveName(), err)
	}

	fingerprint, err := fileutil.HashFileMD5(dest)
	if err != nil {
		_ = os.Remove(dest)
		return TransferResult{}, services.Wrap(services.ErrTransfer, "download", "fingerprint", pkg.ArchiveName(), err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		_ = os.Remove(dest)
		return TransferResult{}, services.Wrap(services.ErrTransfer, "download", "stat", pkg.ArchiveName(), err)
	}
	pkg.Fingerprint = fingerprint
	pkg.SetSize(info.Size())
	result.Fingerprint = fingerprint
	result.Bytes = info.Size()
	return result, nil
}

func (w *Worker) stream(ctx context.Context, pkg *catalog.Package, dest string) (TransferResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pkg.DownloadURL, nil)
	if err != nil {
		return TransferResult{}, fmt.Errorf("build request: %w", err)
	}
	if w.userAgent != "" {
		req.Header.Set("User-Agent", w.userAgent)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return TransferResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return TransferResult{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	file, err := os.Create(dest)
	if err != nil {
		return TransferResult{}, fmt.Errorf("create %s: %w", dest, err)
	}

	title := pkg.DisplayTitle()
	total := resp.ContentLength
	start := w.now()
	sampler := logging.NewProgressSampler(10)
	buf := make([]byte, w.chunkSize)
	var done int64
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				_ = file.Close()
				return TransferResult{}, fmt.Errorf("write %s: %w", dest, err)
			}
			done += int64(n)
			ev := progress.Event{Done: done, Total: total, Stage: progress.StageDownload}
			speed := FormatSpeed(done, w.now().Sub(start))
			ev.Message = fmt.Sprintf("%s (%.1f%%) - %.2f MB/s", title, ev.Percent(), speed)
			w.sink.Publish(ev)
			samplePct := ev.Percent()
			if total <= 0 {
				samplePct = -1
			}
			if sampler.ShouldLog(samplePct, "download") {
				w.logger.Debug("transfer progress",
					logging.Int64("bytes", done),
					logging.Int64("total", total),
					logging.String("percent", fmt.Sprintf("%.1f", ev.Percent())),
				)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			_ = file.Close()
			return TransferResult{}, readErr
		}
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return TransferResult{}, fmt.Errorf("sync %s: %w", dest, err)
	}
	if err := file.Close(); err != nil {
		return TransferResult{}, fmt.Errorf("close %s: %w", dest, err)
	}

	w.sink.Publish(progress.Event{Done: done, Total: done, Message: "Downloaded: " + title, Stage: progress.StageDownload})
	return TransferResult{Path: dest, Bytes: done, Elapsed: w.now().Sub(start)}, nil
}
