// Package chat drives a single conversational turn: optional sentencing
// calculation, guideline retrieval, and reply composition.
package chat

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/courtwise/sentencing-service/internal/calc"
	"github.com/courtwise/sentencing-service/internal/retrieval"
	"github.com/courtwise/sentencing-service/internal/store"
)

const (
	defaultChatTopK = 5
	followUpReply   = "I need one more detail before I can calculate a sentence."
	offenceFollowUp = "Which offence is this for? Provide offence_id or offence name."
	polishTimeout   = 10 * time.Second
)

// Request is a validated chat turn.
type Request struct {
	Message      string
	OffenceID    *string
	OffenceQuery *string
	Calculation  *calc.Request
	TopK         int
}

// Response is the composed turn outcome.
type Response struct {
	Reply             string                 `json:"reply"`
	Calculation       *calc.Response         `json:"calculation"`
	Citations         []store.GuidelineChunk `json:"citations"`
	FollowUpQuestions []string               `json:"follow_up_questions"`
}

// Orchestrator composes calculation, retrieval, and the optional LLM rewrite
// of the deterministic reply.
type Orchestrator struct {
	calculator *calc.Calculator
	retrieval  *retrieval.Service
	llm        LLMCaller
}

func NewOrchestrator(calculator *calc.Calculator, retrievalSvc *retrieval.Service, llm LLMCaller) *Orchestrator {
	return &Orchestrator{calculator: calculator, retrieval: retrievalSvc, llm: llm}
}

// Turn runs one chat turn. A nested calculation inherits the outer offence
// context when its own selector is absent. With neither a calculation nor an
// offence context, the turn returns a follow-up question instead of a result.
func (o *Orchestrator) Turn(ctx context.Context, req Request) (*Response, error) {
	var followUp []string
	var calcResp *calc.Response
	offenceID := req.OffenceID

	if req.Calculation != nil {
		calcReq := *req.Calculation
		if calcReq.OffenceID == nil && offenceID != nil {
			calcReq.OffenceID = offenceID
		}
		if calcReq.OffenceID == nil && calcReq.OffenceQuery == nil && req.OffenceQuery != nil {
			calcReq.OffenceQuery = req.OffenceQuery
		}
		resp, err := o.calculator.Calculate(ctx, calcReq)
		if err != nil {
			return nil, err
		}
		calcResp = resp
		offenceID = &resp.OffenceID
	} else if offenceID == nil && req.OffenceQuery == nil {
		followUp = append(followUp, offenceFollowUp)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = defaultChatTopK
	}
	citations, err := o.retrieval.Search(ctx, req.Message, offenceID, topK)
	if err != nil {
		return nil, err
	}
	if citations == nil {
		citations = []store.GuidelineChunk{}
	}

	if len(followUp) > 0 {
		return &Response{
			Reply:             followUpReply,
			Calculation:       calcResp,
			Citations:         citations,
			FollowUpQuestions: followUp,
		}, nil
	}

	reply := composeReply(calcResp, citations)
	reply = o.polish(ctx, reply)

	return &Response{
		Reply:             reply,
		Calculation:       calcResp,
		Citations:         citations,
		FollowUpQuestions: []string{},
	}, nil
}

func composeReply(calcResp *calc.Response, citations []store.GuidelineChunk) string {
	var parts []string

	if calcResp != nil {
		parts = append(parts, fmt.Sprintf(
			"Calculated sentence for %s: post-plea term %s months, estimated custody served %s months, victim surcharge £%v.",
			calcResp.OffenceName,
			fmtMonths(calcResp.PostPleaTermMonths),
			fmtMonths(calcResp.EstimatedTimeInCustodyMonths),
			calcResp.VictimSurchargeGBP,
		))
		if len(calcResp.Warnings) > 0 {
			parts = append(parts, "Warnings: "+strings.Join(calcResp.Warnings, " "))
		}
	}

	if len(citations) > 0 {
		top := citations[0]
		heading := "section"
		if top.SectionHeading != nil && *top.SectionHeading != "" {
			heading = flattenMarkdown(*top.SectionHeading)
		} else if top.SectionType != nil && *top.SectionType != "" {
			heading = *top.SectionType
		}
		url := "no-url"
		if top.SourceURL != nil && *top.SourceURL != "" {
			url = *top.SourceURL
		}
		parts = append(parts, fmt.Sprintf("Top supporting guideline section: %s (%s).", heading, url))
	} else {
		parts = append(parts, "No guideline citation found for this query.")
	}

	return strings.Join(parts, "\n\n")
}

// polish rewrites the deterministic reply through the LLM when one is
// configured. Any failure keeps the draft.
func (o *Orchestrator) polish(ctx context.Context, draft string) string {
	if o.llm == nil {
		return draft
	}
	polishCtx, cancel := context.WithTimeout(ctx, polishTimeout)
	defer cancel()
	polished, err := o.llm.GenerateText(polishCtx, draft)
	if err != nil {
		log.Printf("chat polish_failed model=%s err=%v", o.llm.ModelName(), err)
		return draft
	}
	polished = strings.TrimSpace(polished)
	if polished == "" {
		return draft
	}
	return polished
}

func fmtMonths(p *float64) string {
	if p == nil {
		return "none"
	}
	return strconv.FormatFloat(*p, 'g', -1, 64)
}
