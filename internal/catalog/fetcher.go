package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"

	"pharos/internal/config"
	"pharos/internal/logging"
	"pharos/internal/services"
)

const defaultRawBaseURL = "https://raw.githubusercontent.com"

// HTTPDoer describes the HTTP client used by the fetcher.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher loads package listings from source repositories.
type Fetcher struct {
	Client     HTTPDoer
	APIBaseURL string
	RawBaseURL string
	UserAgent  string
	Token      string
	Logger     *slog.Logger
}

// NewFetcher builds a fetcher from configuration.
func NewFetcher(cfg *config.Config, logger *slog.Logger) *Fetcher {
	f := &Fetcher{
		Client:     &http.Client{Timeout: cfg.ImagesTimeout()},
		APIBaseURL: cfg.Images.GitHubAPIURL,
		RawBaseURL: defaultRawBaseURL,
		UserAgent:  cfg.Download.UserAgent,
		Token:      cfg.Images.GitHubToken,
		Logger:     logging.NewComponentLogger(logger, "catalog"),
	}
	return f
}

// FetchAll loads every source concurrently. Per-source failures are logged
// and leave that source's lists empty.
func (f *Fetcher) FetchAll(ctx context.Context, sources []*Source) {
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src *Source) {
			defer wg.Done()
			if err := f.FetchSource(ctx, src); err != nil {
				logging.WarnWithContext(f.Logger, "catalog listing unavailable", "catalog_fetch_failed",
					logging.String("source", src.Slug()),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the repository URL in the sources file"),
					logging.String(logging.FieldImpact, "packages from this source are not listed"),
				)
			}
		}(src)
	}
	wg.Wait()
}

// FetchSource fills src.Ports and src.Bottles. A source publishing only one
// of the two listings is not an error.
func (f *Fetcher) FetchSource(ctx context.Context, src *Source) error {
	branch := f.defaultBranch(ctx, src)
	var errs []error
	loaded := 0
	for _, kind := range Kinds {
		items, err := f.fetchListing(ctx, src, branch, kind)
		if err != nil {
			errs = append(errs, err)
			src.SetItems(kind, nil)
			continue
		}
		src.SetItems(kind, items)
		loaded++
		f.Logger.Debug("catalog listing loaded",
			logging.String("source", src.Slug()),
			logging.String("kind", string(kind)),
			logging.Int("count", len(items)),
		)
	}
	if loaded == 0 {
		return services.Wrap(services.ErrNotFound, "catalog", "fetch listings", src.Slug(), errors.Join(errs...))
	}
	return nil
}

func (f *Fetcher) defaultBranch(ctx context.Context, src *Source) string {
	var repo struct {
		DefaultBranch string `json:"default_branch"`
	}
	endpoint := strings.TrimRight(f.APIBaseURL, "/") + "/repos/" + src.Owner + "/" + src.Name
	data, err := f.get(ctx, endpoint, true)
	if err == nil && json.Unmarshal(data, &repo) == nil && repo.DefaultBranch != "" {
		return repo.DefaultBranch
	}
	return "main"
}

func (f *Fetcher) fetchListing(ctx context.Context, src *Source, branch string, kind Kind) ([]*Package, error) {
	base := strings.TrimRight(f.RawBaseURL, "/") + "/" + src.Owner + "/" + src.Name + "/" + branch
	var lastErr error
	for _, candidate := range []string{base + "/" + kind.ListFile(), base + "/docs/" + kind.ListFile()} {
		data, err := f.get(ctx, candidate, false)
		if err != nil {
			lastErr = err
			continue
		}
		items, err := ParseListing(data, kind)
		if err != nil {
			lastErr = err
			continue
		}
		return items, nil
	}
	return nil, fmt.Errorf("%s: %w", kind.ListFile(), lastErr)
}

func (f *Fetcher) get(ctx context.Context, endpoint string, api bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	if api {
		req.Header.Set("Accept", "application/vnd.github+json")
		if f.Token != "" {
			req.Header.Set("Authorization", "token "+f.Token)
		}
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", endpoint, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

type listEntry struct {
	Name string `json:"name"`
	Attr struct {
		Title string `json:"title"`
		Desc  string `json:"desc"`
	} `json:"attr"`
	Source struct {
		DownloadURL string `json:"download_url"`
		Size        *int64 `json:"size"`
		MD5         string `json:"md5"`
		DateUpdated string `json:"date_updated"`
	} `json:"source"`
}

// ParseListing decodes a ports.json or winecask.json document. Both the
// wrapped form {"ports": [...]} / {"bottles": [...]} and a bare array are
// accepted. Archive extensions are stripped from names.
func ParseListing(data []byte, kind Kind) ([]*Package, error) {
	trimmed := bytes.TrimSpace(data)
	var entries []listEntry
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
	default:
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
		raw, ok := wrapped[kind.Partition()]
		if !ok {
			return nil, fmt.Errorf("listing has no %q key", kind.Partition())
		}
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind.Partition(), err)
		}
	}

	items := make([]*Package, 0, len(entries))
	for _, entry := range entries {
		rawName := entry.Name
		if rawName == "" {
			rawName = "Unnamed"
		}
		title := entry.Attr.Title
		if title == "" {
			title = entry.Name
		}
		desc := entry.Attr.Desc
		if desc == "" {
			desc = "Missing description"
		}
		items = append(items, &Package{
			Name:        strings.TrimSuffix(rawName, path.Ext(rawName)),
			Title:       title,
			Description: desc,
			DownloadURL: entry.Source.DownloadURL,
			SizeBytes:   entry.Source.Size,
			Fingerprint: entry.Source.MD5,
			DateUpdated: entry.Source.DateUpdated,
		})
	}
	return items, nil
}
