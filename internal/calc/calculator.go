// Package calc composes offence resolution, the sentencing rules engine, and
// the best-effort audit trail into the calculate_sentence operation.
package calc

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/courtwise/sentencing-service/internal/sentencing"
	"github.com/courtwise/sentencing-service/internal/store"
)

const auditQueueSize = 64

type auditRecord struct {
	offenceID string
	request   json.RawMessage
	result    *Response
}

// Calculator runs calculations against a store and writes audit records on a
// dedicated goroutine. Audit failures never surface to callers.
type Calculator struct {
	store  store.Store
	audits chan auditRecord
	wg     sync.WaitGroup
}

func New(st store.Store) *Calculator {
	c := &Calculator{
		store:  st,
		audits: make(chan auditRecord, auditQueueSize),
	}
	c.wg.Add(1)
	go c.auditLoop()
	return c
}

// Close stops the audit writer after draining queued records.
func (c *Calculator) Close() {
	close(c.audits)
	c.wg.Wait()
}

func (c *Calculator) auditLoop() {
	defer c.wg.Done()
	for rec := range c.audits {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := c.store.StoreCalculationAudit(ctx, rec.offenceID, rec.request, rec.result)
		cancel()
		if err != nil {
			log.Printf("calc audit_write_failed offence_id=%s err=%v", rec.offenceID, err)
		}
	}
}

// Calculate resolves the offence, validates the cross-field rules, runs the
// engine, and enqueues the audit write once the response is built.
func (c *Calculator) Calculate(ctx context.Context, req Request) (*Response, error) {
	offence, resolutionTrace, err := ResolveOffence(ctx, c.store, req.OffenceID, req.OffenceQuery)
	if err != nil {
		return nil, err
	}

	matrix, err := c.store.FetchSentencingMatrix(ctx, offence.OffenceID)
	if err != nil {
		return nil, err
	}

	input := req.Input
	input.Offence = *offence
	if violations := sentencing.ValidateInput(input); len(violations) > 0 {
		return nil, store.NewValidationError(strings.Join(violations, "; "))
	}

	result := sentencing.CalculateSentence(input, matrix)
	resp := toResponse(result)
	resp.Trace = append(resolutionTrace, resp.Trace...)

	c.enqueueAudit(auditRecord{offenceID: resp.OffenceID, request: req.Raw, result: resp})
	return resp, nil
}

// enqueueAudit never blocks; a full queue drops the record.
func (c *Calculator) enqueueAudit(rec auditRecord) {
	select {
	case c.audits <- rec:
	default:
		log.Printf("calc audit_queue_full offence_id=%s", rec.offenceID)
	}
}
