package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"lectern/internal/api"
	"lectern/internal/logging"
	"lectern/internal/testsupport"
)

func newHTTPServer(t *testing.T) (*httptest.Server, *api.Service, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := api.NewService(cfg, store, nil, logging.NewNop())
	server := httptest.NewServer(api.NewHandler(svc, nil, logging.NewNop()))
	t.Cleanup(server.Close)
	return server, svc, cfg.Paths.IncomingDir
}

func submitJob(t *testing.T, server *httptest.Server, path string) api.JobView {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"path": path, "owner": "instructor-7"})
	resp, err := http.Post(server.URL+"/api/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/jobs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}
	var view api.JobView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	return view
}

func TestHTTPSubmitAndFetch(t *testing.T) {
	server, _, incomingDir := newHTTPServer(t)
	source := filepath.Join(incomingDir, "lecture.mp4")
	testsupport.WriteFile(t, source, 64)

	view := submitJob(t, server, source)
	if view.ID == "" || view.Status != "queued" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Owner != "instructor-7" {
		t.Errorf("owner = %q", view.Owner)
	}
	if view.Stages["extract_audio"] != "pending" {
		t.Errorf("stages = %+v", view.Stages)
	}

	resp, err := http.Get(fmt.Sprintf("%s/api/jobs/%s", server.URL, view.ID))
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var fetched api.JobView
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if fetched.ID != view.ID {
		t.Errorf("fetched id = %q", fetched.ID)
	}
	if fetched.CreatedAt == "" {
		t.Error("createdAt missing")
	}
}

func TestHTTPListFiltersByStatus(t *testing.T) {
	server, _, incomingDir := newHTTPServer(t)
	source := filepath.Join(incomingDir, "lecture.mp4")
	testsupport.WriteFile(t, source, 64)
	submitJob(t, server, source)

	resp, err := http.Get(server.URL + "/api/jobs?status=queued")
	if err != nil {
		t.Fatalf("GET jobs: %v", err)
	}
	defer resp.Body.Close()
	var views []api.JobView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("queued jobs = %d, want 1", len(views))
	}

	resp2, err := http.Get(server.URL + "/api/jobs?status=failed")
	if err != nil {
		t.Fatalf("GET jobs: %v", err)
	}
	defer resp2.Body.Close()
	var empty []api.JobView
	if err := json.NewDecoder(resp2.Body).Decode(&empty); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("failed jobs = %d, want 0", len(empty))
	}
}

func TestHTTPResultConflictBeforeCompletion(t *testing.T) {
	server, _, incomingDir := newHTTPServer(t)
	source := filepath.Join(incomingDir, "lecture.mp4")
	testsupport.WriteFile(t, source, 64)
	view := submitJob(t, server, source)

	resp, err := http.Get(fmt.Sprintf("%s/api/jobs/%s/result", server.URL, view.ID))
	if err != nil {
		t.Fatalf("GET result: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("result status = %d, want 409", resp.StatusCode)
	}
}

func TestHTTPCancelQueuedJob(t *testing.T) {
	server, _, incomingDir := newHTTPServer(t)
	source := filepath.Join(incomingDir, "lecture.mp4")
	testsupport.WriteFile(t, source, 64)
	view := submitJob(t, server, source)

	resp, err := http.Post(fmt.Sprintf("%s/api/jobs/%s/cancel", server.URL, view.ID), "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}
	var cancelled api.JobView
	if err := json.NewDecoder(resp.Body).Decode(&cancelled); err != nil {
		t.Fatalf("decode cancel response: %v", err)
	}
	if cancelled.Status != "cancelled" {
		t.Errorf("status = %q, want cancelled", cancelled.Status)
	}
}

func TestHTTPUnknownJobIs404(t *testing.T) {
	server, _, _ := newHTTPServer(t)

	resp, err := http.Get(server.URL + "/api/jobs/no-such-id")
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHTTPHealth(t *testing.T) {
	server, _, _ := newHTTPServer(t)

	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
}
