package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pharos/internal/config"
)

const userAgent = "Pharos/1.0"

// Service defines the notification surface used by the download worker and CLI.
type Service interface {
	NotifyInstallPassCompleted(ctx context.Context, installed, failed int) error
	NotifyTransferFailed(ctx context.Context, name string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		install:  cfg.Notifications.Install,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	install  bool
	errors   bool
}

func (n *ntfyService) NotifyInstallPassCompleted(ctx context.Context, installed, failed int) error {
	if !n.install || installed+failed == 0 {
		return nil
	}
	data := payload{
		title:   "Pharos - Install Complete",
		message: fmt.Sprintf("Installed %d package(s)", installed),
		tags:    []string{"pharos", "install", "completed"},
	}
	if failed > 0 {
		data.title = "Pharos - Install Complete (with errors)"
		data.message = fmt.Sprintf("Installed %d package(s), %d failed", installed, failed)
		data.tags = []string{"pharos", "install", "warning"}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTransferFailed(ctx context.Context, name string, err error) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Download failed")
	if name = strings.TrimSpace(name); name != "" {
		builder.WriteString(": ")
		builder.WriteString(name)
	}
	if err != nil {
		builder.WriteString("\n")
		builder.WriteString(strings.TrimSpace(err.Error()))
	}
	data := payload{
		title:    "Pharos - Error",
		message:  builder.String(),
		tags:     []string{"pharos", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Pharos - Test",
		message:  "Notification system test",
		tags:     []string{"pharos", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyInstallPassCompleted(context.Context, int, int) error { return nil }
func (noopService) NotifyTransferFailed(context.Context, string, error) error  { return nil }
func (noopService) TestNotification(context.Context) error                     { return nil }
