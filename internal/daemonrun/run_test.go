package daemonrun

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"captioner/internal/testsupport"
)

func TestRunServesUntilCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithGoogleCredentials())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, Options{LogLevel: "error", Started: func(addr string) { started <- addr }})
	}()

	var addr string
	select {
	case addr = <-started:
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for daemon start")
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, PIDFileName)
	data, err := os.ReadFile(pidPath)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("unexpected pid file contents %q", data)
	}

	resp, err := http.Get("http://" + addr + "/api/render-progress")
	if err != nil {
		t.Fatalf("GET render-progress: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for shutdown")
	}
	if _, err := os.Stat(pidPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected pid file removed, got %v", err)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}
