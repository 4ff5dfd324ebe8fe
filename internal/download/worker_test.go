package download_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"pharos/internal/catalog"
	"pharos/internal/config"
	"pharos/internal/download"
	"pharos/internal/install"
	"pharos/internal/ledger"
	"pharos/internal/progress"
	"pharos/internal/services"
	"pharos/internal/testsupport"
)

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Publish(ev progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Message)
	}
	return out
}

func (r *recorder) find(prefix string) (progress.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if strings.HasPrefix(ev.Message, prefix) {
			return ev, true
		}
	}
	return progress.Event{}, false
}

type harness struct {
	cfg    *config.Config
	queue  *download.Queue
	worker *download.Worker
	ledger *ledger.Ledger
	events *recorder
}

func newHarness(t *testing.T, client download.HTTPDoer) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Download.ChunkSizeKiB = 1
	h := &harness{
		cfg:    cfg,
		queue:  download.NewQueue(),
		ledger: ledger.New(cfg.Paths.LedgerPath, nil),
		events: &recorder{},
	}
	h.worker = download.NewWorker(cfg, h.queue, download.Dependencies{
		Ledger:    h.ledger,
		Installer: install.NewEngine(cfg, nil),
		Sink:      h.events,
		Client:    client,
	})
	return h
}

func (h *harness) run(t *testing.T, reqs ...catalog.Request) {
	t.Helper()
	for _, req := range reqs {
		h.queue.Submit(req)
	}
	h.queue.Stop()
	if err := h.worker.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func portArchive(t *testing.T, name string) []byte {
	return testsupport.ZipBytes(t,
		testsupport.ZipEntry{Name: name + "/port.json", Body: `{"name":"` + name + `"}`},
		testsupport.ZipEntry{Name: name + "/run.sh", Body: "#!/bin/sh\n"},
	)
}

func TestWorkerTransfersRecordsAndInstalls(t *testing.T) {
	body := portArchive(t, "Alpha")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "Pharos/1.0" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	h := newHarness(t, srv.Client())
	pkg := &catalog.Package{Name: "Alpha", Title: "Alpha Quest", DownloadURL: srv.URL + "/alpha.zip"}
	h.run(t, catalog.Request{Package: pkg, Kind: catalog.KindPort})

	sum := md5.Sum(body)
	want := hex.EncodeToString(sum[:])
	if pkg.Fingerprint != want {
		t.Fatalf("fingerprint = %s, want %s", pkg.Fingerprint, want)
	}
	if pkg.SizeBytes == nil || *pkg.SizeBytes != int64(len(body)) {
		t.Fatalf("size = %v", pkg.SizeBytes)
	}

	doc := h.ledger.Load()
	if len(doc.Ports) != 1 || doc.Ports[0].Fingerprint != want || len(doc.Bottles) != 0 {
		t.Fatalf("ledger = %+v", doc)
	}

	if _, err := os.Stat(filepath.Join(h.cfg.Paths.PortsDir, "Alpha", "port.json")); err != nil {
		t.Fatalf("port not installed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.Paths.StagingDir, "Alpha.zip")); !os.IsNotExist(err) {
		t.Fatalf("staged archive should be removed after install, err=%v", err)
	}

	if _, ok := h.events.find("Alpha Quest ("); !ok {
		t.Fatalf("no chunk progress event: %v", h.events.messages())
	}
	final, ok := h.events.find("Downloaded: Alpha Quest")
	if !ok || final.Percent() != 100 {
		t.Fatalf("missing final download event: %v", h.events.messages())
	}
	msgs := h.events.messages()
	if msgs[len(msgs)-1] != "Installation complete" {
		t.Fatalf("last event = %q", msgs[len(msgs)-1])
	}
	if _, ok := h.events.find("Installing packages"); !ok {
		t.Fatalf("missing install phase event: %v", msgs)
	}
}

func TestWorkerFailureRemovesPartialAndContinues(t *testing.T) {
	good := portArchive(t, "Beta")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.zip" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(good)
	}))
	defer srv.Close()

	h := newHarness(t, srv.Client())
	missing := &catalog.Package{Name: "Missing", DownloadURL: srv.URL + "/missing.zip"}
	beta := &catalog.Package{Name: "Beta", DownloadURL: srv.URL + "/beta.zip"}
	h.run(t,
		catalog.Request{Package: missing, Kind: catalog.KindPort},
		catalog.Request{Package: beta, Kind: catalog.KindPort},
	)

	failed, ok := h.events.find("Failed Missing.zip: ")
	if !ok || !failed.Failed() {
		t.Fatalf("missing failure event: %v", h.events.messages())
	}
	if !errors.Is(failed.Err, services.ErrTransfer) {
		t.Fatalf("failure error = %v", failed.Err)
	}
	if _, err := os.Stat(filepath.Join(h.cfg.Paths.StagingDir, "Missing.zip")); !os.IsNotExist(err) {
		t.Fatalf("partial file should be removed, err=%v", err)
	}
	if _, ok := h.events.find("Downloaded: Beta"); !ok {
		t.Fatalf("queue did not continue: %v", h.events.messages())
	}
	if doc := h.ledger.Load(); len(doc.Ports) != 1 || doc.Ports[0].Name != "Beta" {
		t.Fatalf("ledger = %+v", doc)
	}
}

type forbiddenClient struct{ t *testing.T }

func (f forbiddenClient) Do(*http.Request) (*http.Response, error) {
	f.t.Error("network must not be used")
	return nil, errors.New("forbidden")
}

func TestWorkerRejectsEmptyURLWithoutNetwork(t *testing.T) {
	h := newHarness(t, forbiddenClient{t: t})
	h.run(t, catalog.Request{Package: &catalog.Package{Name: "Ghost"}, Kind: catalog.KindBottle})

	ev, ok := h.events.find("Failed Ghost.zip: ")
	if !ok || !errors.Is(ev.Err, services.ErrTransfer) {
		t.Fatalf("expected transfer failure event, got %v", h.events.messages())
	}
	if doc := h.ledger.Load(); len(doc.Bottles) != 0 {
		t.Fatalf("ledger should be untouched: %+v", doc)
	}
}

func TestWorkerRejectsNameOutsideStaging(t *testing.T) {
	h := newHarness(t, forbiddenClient{t: t})
	outside := filepath.Join(filepath.Dir(h.cfg.Paths.StagingDir), "victim.zip")
	if err := os.WriteFile(outside, []byte("precious"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	h.run(t,
		catalog.Request{Package: &catalog.Package{Name: "../victim", DownloadURL: "http://example.invalid/v.zip"}, Kind: catalog.KindPort},
		catalog.Request{Package: &catalog.Package{Name: "..", DownloadURL: "http://example.invalid/d.zip"}, Kind: catalog.KindPort},
	)

	ev, ok := h.events.find("Failed ../victim.zip: ")
	if !ok || !errors.Is(ev.Err, services.ErrTransfer) {
		t.Fatalf("expected transfer failure event, got %v", h.events.messages())
	}
	if _, ok := h.events.find("Failed ...zip: "); !ok {
		t.Fatalf("expected failure for dot-dot name, got %v", h.events.messages())
	}
	data, err := os.ReadFile(outside)
	if err != nil || string(data) != "precious" {
		t.Fatalf("file outside staging changed: %q, %v", data, err)
	}
	if doc := h.ledger.Load(); len(doc.Ports) != 0 {
		t.Fatalf("ledger should be untouched: %+v", doc)
	}
}

func TestWorkerUnknownLengthReportsFullPercent(t *testing.T) {
	body := portArchive(t, "Gamma")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		half := len(body) / 2
		_, _ = w.Write(body[:half])
		w.(http.Flusher).Flush()
		_, _ = w.Write(body[half:])
	}))
	defer srv.Close()

	h := newHarness(t, srv.Client())
	h.run(t, catalog.Request{Package: &catalog.Package{Name: "Gamma", DownloadURL: srv.URL}, Kind: catalog.KindPort})

	ev, ok := h.events.find("Gamma (")
	if !ok {
		t.Fatalf("no chunk event: %v", h.events.messages())
	}
	if !strings.Contains(ev.Message, "(100.0%)") {
		t.Fatalf("unknown total should report 100%%: %q", ev.Message)
	}
}

func TestWorkerRespectsSentinelWithoutDraining(t *testing.T) {
	h := newHarness(t, forbiddenClient{t: t})
	h.queue.Stop()
	h.queue.Submit(catalog.Request{Package: &catalog.Package{Name: "Later", DownloadURL: "http://example.invalid"}, Kind: catalog.KindPort})
	if err := h.worker.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.queue.Len() != 1 {
		t.Fatalf("request after the sentinel should remain queued, len=%d", h.queue.Len())
	}
}

func TestFormatSpeedGuardsZeroElapsed(t *testing.T) {
	if got := download.FormatSpeed(1024, 0); got != 0 {
		t.Fatalf("speed = %v, want 0", got)
	}
	if got := download.FormatSpeed(2*1024*1024, 2_000_000_000); got != 1 {
		t.Fatalf("speed = %v, want 1", got)
	}
}
