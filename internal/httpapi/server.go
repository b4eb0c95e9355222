// Package httpapi exposes the sentencing service over HTTP: health,
// calculate_sentence, search_guidelines, and chat_turn.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/courtwise/sentencing-service/internal/calc"
	"github.com/courtwise/sentencing-service/internal/chat"
	"github.com/courtwise/sentencing-service/internal/retrieval"
	"github.com/courtwise/sentencing-service/internal/store"
)

type Server struct {
	calculator *calc.Calculator
	retrieval  *retrieval.Service
	chat       *chat.Orchestrator
}

func NewServer(calculator *calc.Calculator, retrievalSvc *retrieval.Service, orchestrator *chat.Orchestrator) http.Handler {
	s := &Server{calculator: calculator, retrieval: retrievalSvc, chat: orchestrator}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/calculate_sentence", s.handleCalculateSentence)
	mux.HandleFunc("/search_guidelines", s.handleSearchGuidelines)
	mux.HandleFunc("/chat_turn", s.handleChatTurn)
	return withCORS(mux)
}

// withCORS applies permissive CORS headers and answers preflights with 200.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeDetail emits the {"detail": ...} error envelope. detail is a string
// for protocol/resolution errors and a []FieldError for validation errors.
func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

func writeStoreError(w http.ResponseWriter, err error) {
	var se *store.Error
	if errors.As(err, &se) {
		writeDetail(w, se.Status, se.Message)
		return
	}
	writeDetail(w, http.StatusInternalServerError, err.Error())
}

func methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// readObjectBody reads and parses the request body as a JSON object. A
// non-object or unparseable body is a 400, already written.
func readObjectBody(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, json.RawMessage, bool) {
	blob, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "could not read request body")
		return nil, nil, false
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return nil, nil, false
	}
	return raw, blob, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCalculateSentence(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	raw, blob, ok := readObjectBody(w, r)
	if !ok {
		return
	}
	req, fieldErrs := parseCalculationRequest(raw, []any{"body"}, blob)
	if len(fieldErrs) > 0 {
		writeDetail(w, http.StatusUnprocessableEntity, fieldErrs)
		return
	}

	resp, err := s.calculator.Calculate(r.Context(), req)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearchGuidelines(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	raw, _, ok := readObjectBody(w, r)
	if !ok {
		return
	}
	req, fieldErrs := parseSearchRequest(raw)
	if len(fieldErrs) > 0 {
		writeDetail(w, http.StatusUnprocessableEntity, fieldErrs)
		return
	}

	results, err := s.retrieval.Search(r.Context(), req.Query, req.OffenceID, req.TopK)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if results == nil {
		results = []store.GuidelineChunk{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleChatTurn(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodPost) {
		return
	}
	raw, _, ok := readObjectBody(w, r)
	if !ok {
		return
	}
	req, fieldErrs := parseChatRequest(raw)
	if len(fieldErrs) > 0 {
		writeDetail(w, http.StatusUnprocessableEntity, fieldErrs)
		return
	}

	resp, err := s.chat.Turn(r.Context(), req)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
