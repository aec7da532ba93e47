package ingest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeFeed(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.jsonl")
	if err := os.WriteFile(path, []byte(lines), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseFileSkipsMalformed(t *testing.T) {
	path := writeFeed(t, `{"external_ref":"post-1","kind":"save","weight":1,"observed_at":1000,"source_id":"u1"}
not json at all
{"external_ref":"","kind":"save","weight":1}
{"external_ref":"post-2","kind":"reaction","weight":0.5,"observed_at":2000,"source_id":"u2"}

{"external_ref":"post-3","kind":""}
`)

	tuples, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(tuples) != 2 {
		t.Fatalf("expected 2 tuples, got %d", len(tuples))
	}
	if tuples[0].ExternalRef != "post-1" || tuples[1].ExternalRef != "post-2" {
		t.Errorf("unexpected tuples: %+v", tuples)
	}
}

func TestParseFileMissing(t *testing.T) {
	if _, err := ParseFile("/nonexistent/feed.jsonl"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPushDiscoversThenRecords(t *testing.T) {
	var contentPosts, eventPosts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/content":
			contentPosts++
			var req map[string]any
			json.NewDecoder(r.Body).Decode(&req)
			if req["created_at"].(float64) <= 0 {
				t.Errorf("discovery without created_at fallback: %v", req)
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"content_id":1}`))
		case "/api/content/post-1/events":
			eventPosts++
			if eventPosts == 1 {
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"status":"recorded"}`))
			} else {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"status":"duplicate"}`))
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := &Client{http: srv.Client(), serverURL: srv.URL}
	tuples := []Tuple{
		{ExternalRef: "post-1", Kind: "save", Weight: 1, ObservedAt: 1000, SourceID: "u1"},
		{ExternalRef: "post-1", Kind: "save", Weight: 1, ObservedAt: 1000, SourceID: "u1"},
	}

	report, err := Push(client, tuples)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if contentPosts != 1 {
		t.Errorf("expected 1 discovery call, got %d", contentPosts)
	}
	if report.Recorded != 1 || report.Duplicates != 1 || report.Failed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := &Client{http: srv.Client(), serverURL: srv.URL}
	if !client.Healthy() {
		t.Error("expected healthy")
	}

	client.serverURL = "http://127.0.0.1:1"
	if client.Healthy() {
		t.Error("expected unhealthy for unreachable server")
	}
}
