package calc

import (
	"encoding/json"

	"github.com/courtwise/sentencing-service/internal/sentencing"
)

// Request is a validated calculation request. Input.Offence is zero until the
// resolver runs. Raw is the original request body, kept for the audit record.
type Request struct {
	OffenceID    *string
	OffenceQuery *string
	Input        sentencing.CalculationInput
	Raw          json.RawMessage
}

// RangeOut is the matched guideline range in response shape.
type RangeOut struct {
	Culpability       string `json:"culpability"`
	Harm              string `json:"harm"`
	StartingPointText string `json:"starting_point_text"`
	CategoryRangeText string `json:"category_range_text"`
}

// Response is the calculation outcome as serialized to clients and to the
// audit log.
type Response struct {
	OffenceID                    string                  `json:"offence_id"`
	OffenceName                  string                  `json:"offence_name"`
	SentenceType                 sentencing.SentenceType `json:"sentence_type"`
	PrePleaTermMonths            *float64                `json:"pre_plea_term_months"`
	PostPleaTermMonths           *float64                `json:"post_plea_term_months"`
	MinimumSentenceTriggered     bool                    `json:"minimum_sentence_triggered"`
	MinimumFloorPrePleaMonths    *float64                `json:"minimum_floor_pre_plea_months"`
	MinimumFloorPostPleaMonths   *float64                `json:"minimum_floor_post_plea_months"`
	ReleaseFraction              *float64                `json:"release_fraction"`
	EstimatedTimeInCustodyMonths *float64                `json:"estimated_time_in_custody_months"`
	VictimSurchargeGBP           float64                 `json:"victim_surcharge_gbp"`
	MatchedRange                 *RangeOut               `json:"matched_range"`
	Warnings                     []string                `json:"warnings"`
	Trace                        []string                `json:"trace"`
}

func toResponse(result sentencing.Result) *Response {
	var matched *RangeOut
	if result.MatchedRange != nil {
		matched = &RangeOut{
			Culpability:       result.MatchedRange.Culpability,
			Harm:              result.MatchedRange.Harm,
			StartingPointText: result.MatchedRange.StartingPointText,
			CategoryRangeText: result.MatchedRange.CategoryRangeText,
		}
	}
	warnings := result.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return &Response{
		OffenceID:                    result.OffenceID,
		OffenceName:                  result.OffenceName,
		SentenceType:                 result.SentenceType,
		PrePleaTermMonths:            result.PrePleaTermMonths,
		PostPleaTermMonths:           result.PostPleaTermMonths,
		MinimumSentenceTriggered:     result.MinimumSentenceTriggered,
		MinimumFloorPrePleaMonths:    result.MinimumFloorPrePleaMonths,
		MinimumFloorPostPleaMonths:   result.MinimumFloorPostPleaMonths,
		ReleaseFraction:              result.ReleaseFraction,
		EstimatedTimeInCustodyMonths: result.EstimatedTimeInCustodyMonths,
		VictimSurchargeGBP:           result.VictimSurchargeGBP,
		MatchedRange:                 matched,
		Warnings:                     warnings,
		Trace:                        result.Trace,
	}
}
