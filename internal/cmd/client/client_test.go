package client

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// stubAPI is a minimal in-memory node speaking the HTTP surface the
// commands expect.
type stubAPI struct {
	appends  []string
	compacts []string
	deletes  []string
}

func (a *stubAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/updates/append", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DocumentID string `json:"documentId"`
			Payload    []byte `json:"payload"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		a.appends = append(a.appends, req.DocumentID+":"+string(req.Payload))
		_ = json.NewEncoder(w).Encode(map[string]uint64{"sequence": uint64(len(a.appends) - 1)})
	})
	mux.HandleFunc("/v1/updates", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"documentId": r.URL.Query().Get("documentId"),
			"updates": []map[string]any{
				{"sequence": 0, "payload": []byte(`{"k":"v"}`)},
				{"sequence": 1, "payload": []byte("plain text")},
			},
		})
	})
	mux.HandleFunc("/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"documents": []string{"pg_a", "pg_b"}})
	})
	mux.HandleFunc("/v1/documents/state", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"documentId": r.URL.Query().Get("documentId"),
			"update":     []byte("merged"),
			"records":    3,
		})
	})
	mux.HandleFunc("/v1/documents/stats", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]uint64{
			"records": 4, "bytes": 128, "firstSequence": 0, "lastSequence": 3,
		})
	})
	mux.HandleFunc("/v1/documents/compact", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DocumentID string `json:"documentId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		a.compacts = append(a.compacts, req.DocumentID)
		_ = json.NewEncoder(w).Encode(map[string]any{"compacted": true, "removed": 3, "sequence": 0})
	})
	mux.HandleFunc("/v1/pages", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "pg_test", "title": req.Title})
		case http.MethodDelete:
			a.deletes = append(a.deletes, r.URL.Query().Get("id"))
			w.WriteHeader(http.StatusNoContent)
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"pages": []map[string]string{{"id": "pg_test"}}})
		}
	})
	return mux
}

func startStub(t *testing.T) (*stubAPI, BaseURLFunc) {
	t.Helper()
	api := &stubAPI{}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return api, func() string { return srv.URL }
}

func TestAppendPrintsSequence(t *testing.T) {
	api, baseURL := startStub(t)

	cmd := NewAppendCommand(baseURL)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--document", "pg_a", "--data", "hello"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(buf.String(), "sequence: 0") {
		t.Fatalf("expected sequence in output, got: %s", buf.String())
	}
	if len(api.appends) != 1 || api.appends[0] != "pg_a:hello" {
		t.Fatalf("appends = %v", api.appends)
	}
}

func TestAppendRequiresDocument(t *testing.T) {
	_, baseURL := startStub(t)
	cmd := NewAppendCommand(baseURL)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--data", "hello"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error without --document")
	}
}

func TestReadDecodesPayloads(t *testing.T) {
	_, baseURL := startStub(t)

	cmd := NewReadCommand(baseURL)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--document", "pg_a"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 output lines, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "payload_json") {
		t.Fatalf("first line should decode as JSON: %s", lines[0])
	}
	if !strings.Contains(lines[1], "payload_text") {
		t.Fatalf("second line should decode as text: %s", lines[1])
	}
}

func TestStateOutputsBase64Seed(t *testing.T) {
	_, baseURL := startStub(t)

	cmd := NewStateCommand(baseURL)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--document", "pg_a"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	var out struct {
		DocumentID string `json:"documentId"`
		Records    int    `json:"records"`
		UpdateB64  string `json:"update_b64"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if out.Records != 3 || out.UpdateB64 == "" {
		t.Fatalf("out = %+v", out)
	}
}

func TestCompactReportsResult(t *testing.T) {
	api, baseURL := startStub(t)

	cmd := NewCompactCommand(baseURL)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--document", "pg_a"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(api.compacts) != 1 || api.compacts[0] != "pg_a" {
		t.Fatalf("compacts = %v", api.compacts)
	}
	if !strings.Contains(buf.String(), `"compacted": true`) {
		t.Fatalf("output: %s", buf.String())
	}
}

func TestStatsAndDocs(t *testing.T) {
	_, baseURL := startStub(t)

	statsCmd := NewStatsCommand(baseURL)
	buf := &bytes.Buffer{}
	statsCmd.SetOut(buf)
	statsCmd.SetErr(buf)
	statsCmd.SetArgs([]string{"--document", "pg_a"})
	if err := statsCmd.Execute(); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(buf.String(), `"records": 4`) {
		t.Fatalf("stats output: %s", buf.String())
	}

	docsCmd := NewDocsCommand(baseURL)
	buf = &bytes.Buffer{}
	docsCmd.SetOut(buf)
	docsCmd.SetErr(buf)
	docsCmd.SetArgs([]string{})
	if err := docsCmd.Execute(); err != nil {
		t.Fatalf("docs: %v", err)
	}
	if !strings.Contains(buf.String(), "pg_a") || !strings.Contains(buf.String(), "pg_b") {
		t.Fatalf("docs output: %s", buf.String())
	}
}

func TestPagesDeleteRequiresConfirm(t *testing.T) {
	api, baseURL := startStub(t)

	cmd := NewPagesCommand(baseURL)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"delete", "--id", "pg_test"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error without --confirm")
	}
	if len(api.deletes) != 0 {
		t.Fatalf("delete should not have been sent: %v", api.deletes)
	}

	cmd = NewPagesCommand(baseURL)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"delete", "--id", "pg_test", "--confirm"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(api.deletes) != 1 || api.deletes[0] != "pg_test" {
		t.Fatalf("deletes = %v", api.deletes)
	}
}

func TestServerErrorSurfacesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "storage append: disk full"})
	}))
	t.Cleanup(srv.Close)

	cmd := NewAppendCommand(func() string { return srv.URL })
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--document", "pg_a", "--data", "x"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected server error message, got %v", err)
	}
}
