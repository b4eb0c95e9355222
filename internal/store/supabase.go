package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/courtwise/sentencing-service/internal/sentencing"
)

// SupabaseStore talks to the Supabase PostgREST RPC surface. Each contract
// function maps to POST {url}/rest/v1/rpc/<fn>.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

type SupabaseConfig struct {
	URL        string
	ServiceKey string
	HTTPClient *http.Client
}

func NewSupabaseStore(cfg SupabaseConfig) (*SupabaseStore, error) {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	cfg.ServiceKey = strings.TrimSpace(cfg.ServiceKey)
	if cfg.URL == "" {
		return nil, errors.New("SUPABASE_URL not configured")
	}
	if cfg.ServiceKey == "" {
		return nil, errors.New("SUPABASE_SERVICE_ROLE_KEY not configured")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &SupabaseStore{baseURL: cfg.URL, serviceKey: cfg.ServiceKey, client: cfg.HTTPClient}, nil
}

// postgrestError is the error envelope PostgREST returns on failures.
type postgrestError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (s *SupabaseStore) rpc(ctx context.Context, fn string, params any, out any) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return NewInternalError(fmt.Sprintf("encode rpc %s params: %v", fn, err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rest/v1/rpc/"+fn, bytes.NewReader(payload))
	if err != nil {
		return NewInternalError(fmt.Sprintf("build rpc %s request: %v", fn, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)

	res, err := s.client.Do(req)
	if err != nil {
		return NewInternalError(fmt.Sprintf("rpc %s: %v", fn, err))
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<20))

	if res.StatusCode >= 400 {
		var pgErr postgrestError
		_ = json.Unmarshal(body, &pgErr)
		msg := pgErr.Message
		if msg == "" {
			msg = fmt.Sprintf("rpc %s: status %d", fn, res.StatusCode)
		}
		// 22P02: invalid text representation, e.g. a malformed UUID.
		if pgErr.Code == "22P02" || strings.Contains(strings.ToLower(msg), "invalid input syntax for type uuid") {
			return NewValidationError(msg)
		}
		return NewInternalError(msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return NewInternalError(fmt.Sprintf("decode rpc %s response: %v", fn, err))
	}
	return nil
}

func (s *SupabaseStore) FetchOffenceByID(ctx context.Context, offenceID string) (*sentencing.OffenceRecord, error) {
	if err := ValidateUUID(offenceID); err != nil {
		return nil, err
	}
	var rows []sentencing.OffenceRecord
	if err := s.rpc(ctx, "fetch_offence_by_id", map[string]any{"offence_id": offenceID}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	return &row, nil
}

func (s *SupabaseStore) SearchOffences(ctx context.Context, query string, limit int) ([]ScoredOffence, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []ScoredOffence
	if err := s.rpc(ctx, "search_offences", map[string]any{"query": query, "match_limit": limit}, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *SupabaseStore) FetchSentencingMatrix(ctx context.Context, offenceID string) ([]sentencing.MatrixRow, error) {
	if err := ValidateUUID(offenceID); err != nil {
		return nil, err
	}
	var rows []sentencing.MatrixRow
	if err := s.rpc(ctx, "fetch_sentencing_matrix", map[string]any{"offence_id": offenceID}, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *SupabaseStore) SearchChunksText(ctx context.Context, query string, topK int, offenceID *string) ([]GuidelineChunk, error) {
	if offenceID != nil {
		if err := ValidateUUID(*offenceID); err != nil {
			return nil, err
		}
	}
	var rows []GuidelineChunk
	params := map[string]any{"query": query, "top_k": topK, "offence_id": offenceID}
	if err := s.rpc(ctx, "search_chunks_text", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *SupabaseStore) SearchChunksHybrid(ctx context.Context, query string, embedding []float64, topK int, offenceID *string) ([]GuidelineChunk, error) {
	if offenceID != nil {
		if err := ValidateUUID(*offenceID); err != nil {
			return nil, err
		}
	}
	var rows []GuidelineChunk
	params := map[string]any{
		"query":      query,
		"embedding":  embedding,
		"top_k":      topK,
		"offence_id": offenceID,
	}
	if err := s.rpc(ctx, "search_chunks_hybrid", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *SupabaseStore) StoreCalculationAudit(ctx context.Context, offenceID string, requestPayload, resultPayload any) error {
	params := map[string]any{
		"offence_id":      offenceID,
		"request_payload": requestPayload,
		"result_payload":  resultPayload,
	}
	return s.rpc(ctx, "store_calculation_audit", params, nil)
}

var _ Store = (*SupabaseStore)(nil)
