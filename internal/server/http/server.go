package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/macrat/markdown-board-sub001/internal/pages"
	"github.com/macrat/markdown-board-sub001/internal/runtime"
	logpkg "github.com/macrat/markdown-board-sub001/pkg/log"
)

type Server struct {
	rt  *runtime.Runtime
	srv *http.Server
	lis net.Listener
	log logpkg.Logger
}

func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	mux := http.NewServeMux()
	s := &Server{rt: rt, log: logger.WithComponent("http")}
	s.srv = &http.Server{Handler: cors(s.logRequests(mux))}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/updates/append", s.handleAppend)
	mux.HandleFunc("/v1/updates", s.handleUpdates)
	mux.HandleFunc("/v1/documents", s.handleDocuments)
	mux.HandleFunc("/v1/documents/state", s.handleState)
	mux.HandleFunc("/v1/documents/stats", s.handleStats)
	mux.HandleFunc("/v1/documents/compact", s.handleCompact)
	if rt.Pages() != nil {
		mux.HandleFunc("/v1/pages", s.handlePages)
	}
	return s
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.log.Info("http.listen", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http.request",
			logpkg.Str("method", r.Method),
			logpkg.Str("path", r.URL.Path),
			logpkg.Dur("elapsed", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	driver := s.rt.Config().Storage.Driver
	if driver == "" {
		driver = "pebble"
	}
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_serving", "driver": driver})
		return
	}
	writeJSON(w, map[string]string{"status": "ok", "driver": driver})
}

type appendReq struct {
	DocumentID string `json:"documentId"`
	Payload    []byte `json:"payload"`
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req appendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "documentId required")
		return
	}
	seq, err := s.rt.Store().Append(r.Context(), req.DocumentID, req.Payload)
	if err != nil {
		// The edit is not durable, so nothing is acknowledged.
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]uint64{"sequence": seq})
}

type updateItem struct {
	Sequence uint64 `json:"sequence"`
	Payload  []byte `json:"payload"`
}

func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	documentID := r.URL.Query().Get("documentId")
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "documentId required")
		return
	}
	records, err := s.rt.Store().ReadAll(r.Context(), documentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	items := make([]updateItem, 0, len(records))
	for _, rec := range records {
		items = append(items, updateItem{Sequence: rec.Sequence, Payload: rec.Payload})
	}
	writeJSON(w, map[string]any{"documentId": documentID, "updates": items})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	docs, err := s.rt.Store().Documents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []string{}
	}
	writeJSON(w, map[string]any{"documents": docs})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	documentID := r.URL.Query().Get("documentId")
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "documentId required")
		return
	}
	merged, records, err := s.rt.Loader().LoadMerged(r.Context(), documentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"documentId": documentID, "update": merged, "records": records})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	documentID := r.URL.Query().Get("documentId")
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "documentId required")
		return
	}
	stats, err := s.rt.Store().DocStats(r.Context(), documentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]uint64{
		"records":       stats.Records,
		"bytes":         stats.Bytes,
		"firstSequence": stats.FirstSeq,
		"lastSequence":  stats.LastSeq,
	})
}

type compactReq struct {
	DocumentID string `json:"documentId"`
}

func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req compactReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "documentId required")
		return
	}
	res, err := s.rt.Compactor().Compact(r.Context(), req.DocumentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{
		"compacted": res.Compacted,
		"removed":   len(res.Removed),
		"sequence":  res.Merged.Sequence,
	})
}

type pageCreateReq struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if id := r.URL.Query().Get("id"); id != "" {
			page, err := s.rt.Pages().Get(r.Context(), id)
			if errors.Is(err, pages.ErrNotFound) {
				writeError(w, http.StatusNotFound, "page not found")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, page)
			return
		}
		list, err := s.rt.Pages().List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if list == nil {
			list = []pages.Page{}
		}
		writeJSON(w, map[string]any{"pages": list})
	case http.MethodPost:
		var req pageCreateReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		page, err := s.rt.Pages().Create(r.Context(), req.ID, req.Title)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(page)
	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "id required")
			return
		}
		err := s.rt.Pages().Delete(r.Context(), id)
		if errors.Is(err, pages.ErrNotFound) {
			writeError(w, http.StatusNotFound, "page not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}
