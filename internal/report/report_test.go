package report

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/picker/pkg/config"
	"github.com/wonny/picker/pkg/httputil"
	"github.com/wonny/picker/pkg/logger"
)

func TestReporterPublish(t *testing.T) {
	notified := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		notified <- struct{}{}
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	cfg := &config.Config{
		Scan:   config.ScanConfig{OutputDir: dir},
		Notify: config.NotifyConfig{WebhookURL: server.URL},
	}
	log := logger.Nop()
	notifier := NewNotifier(cfg, httputil.New(cfg, log).DisableRetry(), log)
	reporter := NewReporter(cfg, notifier, log)

	require.NoError(t, reporter.Publish(context.Background(), sampleResult()))

	<-notified
	raw, err := os.ReadFile(filepath.Join(dir, "picks_2024-01-15.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "000002")
}

func TestReporterPublishEmptyScan(t *testing.T) {
	notified := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		notified <- struct{}{}
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	cfg := &config.Config{
		Scan:   config.ScanConfig{OutputDir: dir},
		Notify: config.NotifyConfig{WebhookURL: server.URL},
	}
	log := logger.Nop()
	notifier := NewNotifier(cfg, httputil.New(cfg, log).DisableRetry(), log)
	reporter := NewReporter(cfg, notifier, log)

	result := sampleResult()
	result.Picks = nil
	require.NoError(t, reporter.Publish(context.Background(), result))

	// Empty scans still notify, but write no CSV.
	<-notified
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReporterPublishNoSinks(t *testing.T) {
	cfg := &config.Config{}
	log := logger.Nop()
	notifier := NewNotifier(cfg, httputil.New(cfg, log), log)
	reporter := NewReporter(cfg, notifier, log)

	assert.NoError(t, reporter.Publish(context.Background(), sampleResult()))
}
