// Package store defines the persistence contract for the offence catalog,
// sentencing matrices, guideline chunks, and the calculation audit log, plus
// the Supabase and SQLite backends implementing it.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/courtwise/sentencing-service/internal/sentencing"
)

const (
	CodeValidation  = "validation"
	CodeNotFound    = "not_found"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal"
)

// Error is a store failure carrying the HTTP status the edge should report.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func statusForCode(code string) int {
	switch code {
	case CodeValidation:
		return 422
	case CodeNotFound:
		return 404
	case CodeUnavailable:
		return 503
	default:
		return 500
	}
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: statusForCode(code)}
}

// NewValidationError reports malformed input as seen by the store, e.g. a
// malformed offence UUID.
func NewValidationError(message string) error { return newError(CodeValidation, message) }

// NewNotFoundError reports a missing row.
func NewNotFoundError(message string) error { return newError(CodeNotFound, message) }

// NewInternalError reports a backend failure.
func NewInternalError(message string) error { return newError(CodeInternal, message) }

// GuidelineChunk is one pre-indexed guideline passage with its retrieval
// scores. VectorScore and TextScore are populated on the hybrid path only.
type GuidelineChunk struct {
	ChunkID        string   `json:"chunk_id"`
	GuidelineID    string   `json:"guideline_id"`
	OffenceID      *string  `json:"offence_id"`
	SectionType    *string  `json:"section_type"`
	SectionHeading *string  `json:"section_heading"`
	ChunkText      string   `json:"chunk_text"`
	SourceURL      *string  `json:"source_url"`
	Score          *float64 `json:"score,omitempty"`
	VectorScore    *float64 `json:"vector_score,omitempty"`
	TextScore      *float64 `json:"text_score,omitempty"`
}

// ScoredOffence is an offence row with its fuzzy-match score.
type ScoredOffence struct {
	sentencing.OffenceRecord
	Score float64 `json:"score"`
}

// Store is the persistence contract. Fetches return nil (not an error) when
// no row matches; failures are *Error values.
type Store interface {
	FetchOffenceByID(ctx context.Context, offenceID string) (*sentencing.OffenceRecord, error)
	SearchOffences(ctx context.Context, query string, limit int) ([]ScoredOffence, error)
	FetchSentencingMatrix(ctx context.Context, offenceID string) ([]sentencing.MatrixRow, error)
	SearchChunksText(ctx context.Context, query string, topK int, offenceID *string) ([]GuidelineChunk, error)
	SearchChunksHybrid(ctx context.Context, query string, embedding []float64, topK int, offenceID *string) ([]GuidelineChunk, error)
	StoreCalculationAudit(ctx context.Context, offenceID string, requestPayload, resultPayload any) error
}

// ValidateUUID rejects malformed offence identifiers before they reach a
// backend, matching the store-reported 422 contract.
func ValidateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return NewValidationError(fmt.Sprintf("invalid offence_id %q: not a UUID", id))
	}
	return nil
}
