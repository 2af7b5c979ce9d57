package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/datallboy/nzbweaver/internal/app"
	"github.com/datallboy/nzbweaver/internal/engine"
	"github.com/datallboy/nzbweaver/internal/infra/config"
	"github.com/datallboy/nzbweaver/internal/infra/logger"
	"github.com/labstack/echo/v5"
)

type fakeSource struct {
	running bool
	snap    engine.Snapshot
	files   []engine.FileSnapshot
}

func (s *fakeSource) Status() (engine.Snapshot, bool)      { return s.snap, s.running }
func (s *fakeSource) Files() ([]engine.FileSnapshot, bool) { return s.files, s.running }

func testApp() *app.Context {
	return app.NewContext(&config.Config{}, logger.Discard())
}

func serve(t *testing.T, src *fakeSource, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	RegisterRoutes(e, testApp(), src)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	src := &fakeSource{
		running: true,
		snap: engine.Snapshot{
			Release:         "movie",
			TotalBytes:      2000,
			DownloadedBytes: 700,
			Percent:         35,
			Failed:          2,
		},
	}

	rec := serve(t, src, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["release"] != "movie" || got["downloaded_bytes"] != float64(700) || got["failed_segments"] != float64(2) {
		t.Fatalf("body = %v", got)
	}
}

func TestFilesEndpoint(t *testing.T) {
	src := &fakeSource{
		running: true,
		files: []engine.FileSnapshot{
			{Index: 0, Name: "movie.mkv", State: "done", Segments: 3, Decoded: 1, Missing: []int{1, 3}},
		},
	}

	rec := serve(t, src, "/api/files")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got []engine.FileSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Name != "movie.mkv" || len(got[0].Missing) != 2 {
		t.Fatalf("files = %+v", got)
	}
}

func TestEndpointsWithoutRun(t *testing.T) {
	for _, path := range []string{"/api/status", "/api/files"} {
		rec := serve(t, &fakeSource{}, path)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestServerShutsDownWithContext(t *testing.T) {
	src := &fakeSource{running: true, snap: engine.Snapshot{Release: "r"}}
	srv, err := NewServer(testApp(), "127.0.0.1:0", src)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/api/status", srv.Addr()))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
