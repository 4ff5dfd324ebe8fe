package imagesync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"pharos/internal/config"
)

// Asset is a release asset as reported by the hosting platform.
type Asset struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"browser_download_url"`
}

// ReleaseClient resolves and downloads release assets.
type ReleaseClient interface {
	// FindAsset returns the asset addressed by a release download URL, or
	// nil when the release or the asset does not exist.
	FindAsset(ctx context.Context, assetURL string) (*Asset, error)
	// Download streams the asset body into w.
	Download(ctx context.Context, asset *Asset, w io.Writer) error
}

// HTTPDoer describes the HTTP client used by GitHubClient.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// GitHubClient talks to the GitHub releases API.
type GitHubClient struct {
	HTTP       HTTPDoer
	APIBaseURL string
	Token      string
	UserAgent  string
}

// NewGitHubClient builds a client from configuration.
func NewGitHubClient(cfg *config.Config) *GitHubClient {
	return &GitHubClient{
		HTTP:       &http.Client{Timeout: cfg.ImagesTimeout()},
		APIBaseURL: cfg.Images.GitHubAPIURL,
		Token:      cfg.Images.GitHubToken,
		UserAgent:  cfg.Download.UserAgent,
	}
}

// ParseAssetURL splits https://github.com/{owner}/{repo}/releases/download/{tag}/{asset}.
func ParseAssetURL(assetURL string) (owner, repo, tag, asset string, err error) {
	parsed, err := url.Parse(assetURL)
	if err != nil {
		return "", "", "", "", fmt.Errorf("parse asset url: %w", err)
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) != 6 || parts[2] != "releases" || parts[3] != "download" {
		return "", "", "", "", fmt.Errorf("not a release download url: %q", assetURL)
	}
	return parts[0], parts[1], parts[4], parts[5], nil
}

// FindAsset looks up the release by tag and picks the asset by name.
func (c *GitHubClient) FindAsset(ctx context.Context, assetURL string) (*Asset, error) {
	owner, repo, tag, name, err := ParseAssetURL(assetURL)
	if err != nil {
		return nil, err
	}
	endpoint := strings.TrimRight(c.APIBaseURL, "/") + "/" + path.Join("repos", owner, repo, "releases", "tags", url.PathEscape(tag))
	req, err := c.newRequest(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query release %s/%s@%s: %w", owner, repo, tag, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query release %s/%s@%s: status %d", owner, repo, tag, resp.StatusCode)
	}

	var release struct {
		Assets []Asset `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decode release: %w", err)
	}
	for i := range release.Assets {
		if release.Assets[i].Name == name {
			asset := release.Assets[i]
			return &asset, nil
		}
	}
	return nil, nil
}

// Download fetches the asset body.
func (c *GitHubClient) Download(ctx context.Context, asset *Asset, w io.Writer) error {
	req, err := c.newRequest(ctx, asset.DownloadURL)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", asset.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", asset.Name, resp.StatusCode)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download %s: %w", asset.Name, err)
	}
	return nil
}

func (c *GitHubClient) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "token "+c.Token)
	}
	return req, nil
}
