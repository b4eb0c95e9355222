package sentencing

import (
	"fmt"
	"strings"
)

// ValidateInput applies the cross-field business rules. All violations are
// collected; the caller decides how to report them.
func ValidateInput(in CalculationInput) []string {
	var errs []string

	if in.OffenceDate.After(in.ConvictionDate) {
		errs = append(errs, "offence_date must be on or before conviction_date")
	}
	if in.ConvictionDate.After(in.SentenceDate) {
		errs = append(errs, "conviction_date must be on or before sentence_date")
	}

	if in.AgeAtOffence < 10 || in.AgeAtOffence > 120 {
		errs = append(errs, "age_at_offence must be between 10 and 120")
	}
	if in.AgeAtConviction < in.AgeAtOffence {
		errs = append(errs, "age_at_conviction must be >= age_at_offence")
	}
	if in.AgeAtSentence < in.AgeAtConviction {
		errs = append(errs, "age_at_sentence must be >= age_at_conviction")
	}

	if in.PrePleaTermMonths != nil && *in.PrePleaTermMonths < 0 {
		errs = append(errs, "pre_plea_term_months must be non-negative")
	}
	if in.ExtensionMonths < 0 {
		errs = append(errs, "extension_months must be non-negative")
	}
	if in.FineAmount != nil && *in.FineAmount < 0 {
		errs = append(errs, "fine_amount must be non-negative")
	}

	return errs
}

// PickSentencingRange matches the requested culpability/harm labels against
// the matrix rows: exact case-folded equality first, then containment
// (request label inside row label). No match is not an error.
func PickSentencingRange(culpability, harm string, rows []MatrixRow) *RangeRecord {
	if culpability == "" || harm == "" {
		return nil
	}

	wantCulp := strings.ToLower(strings.TrimSpace(culpability))
	wantHarm := strings.ToLower(strings.TrimSpace(harm))

	for _, row := range rows {
		rowCulp := strings.ToLower(strings.TrimSpace(row.Culpability))
		rowHarm := strings.ToLower(strings.TrimSpace(row.Harm))
		if rowCulp == wantCulp && rowHarm == wantHarm {
			return rangeFromRow(row)
		}
	}

	// Containment fallback, useful for labels like "Category 1".
	for _, row := range rows {
		rowCulp := strings.ToLower(strings.TrimSpace(row.Culpability))
		rowHarm := strings.ToLower(strings.TrimSpace(row.Harm))
		if strings.Contains(rowCulp, wantCulp) && strings.Contains(rowHarm, wantHarm) {
			return rangeFromRow(row)
		}
	}

	return nil
}

func rangeFromRow(row MatrixRow) *RangeRecord {
	return &RangeRecord{
		Culpability:       row.Culpability,
		Harm:              row.Harm,
		StartingPointText: row.StartingPointText,
		CategoryRangeText: row.CategoryRangeText,
	}
}

// BuildWarnings flags mandatory-life, dangerousness, and Schedule 18A
// mismatches. The pre-plea term is the final (post-floor) value.
func BuildWarnings(in CalculationInput, prePleaTermMonths *float64) []string {
	var warnings []string
	offence := in.Offence

	pre := 0.0
	if prePleaTermMonths != nil {
		pre = *prePleaTermMonths
	}
	if offence.ListedOffence && in.AgeAtSentence >= 18 && in.PriorListedOffenceWithCustody && pre >= 120 {
		warnings = append(warnings,
			"Mandatory life sentence route may be engaged for repeat listed offence; review SC283/SC273 conditions.")
	}

	if (offence.SpecifiedViolent || offence.SpecifiedSexual || offence.SpecifiedTerrorist) &&
		in.DangerousnessAssessed && HasLifeMaximum(offence) {
		warnings = append(warnings,
			"Dangerousness + specified offence + life max may trigger mandatory life provisions; review SC285/SC274/SC258.")
	}

	if in.SentenceType == SentenceSpecialCustodialSentence && !offence.Schedule18AOffence {
		warnings = append(warnings,
			"Special custodial sentence selected but offence is not marked Schedule 18A in offence metadata.")
	}

	return warnings
}

// CalculateSentence runs the full deterministic pipeline: plea discount,
// minimum-sentence decision, floor application, release fraction, custody
// estimate, victim surcharge, range match, warnings. Trace entries are
// emitted in that order. The input must already have passed ValidateInput.
func CalculateSentence(in CalculationInput, matrixRows []MatrixRow) Result {
	trace := []string{}

	pre := in.PrePleaTermMonths
	post := SentenceAfterPlea(pre, in.PleaStage)
	if pre != nil {
		trace = append(trace, fmt.Sprintf("Applied plea factor for %s: pre=%v -> post=%v", in.PleaStage, *pre, *post))
	}

	minDecision := MinimumSentenceDecision(in)
	if minDecision.Triggered {
		reason := minDecision.Reason
		if reason == "" {
			reason = "Minimum sentence rule triggered"
		}
		trace = append(trace, reason)
	}

	pre, post, floorTrace := ApplyMinimumSentenceFloor(pre, post, minDecision)
	trace = append(trace, floorTrace...)

	release := ReleaseFractionDecision(in, post)
	trace = append(trace, release.Reason)

	var estimated *float64
	if post != nil && release.Fraction != nil {
		estimated = floatPtr(round2(*post * *release.Fraction))
	}

	surcharge := VictimSurcharge(in.OffenceDate, in.AgeAtOffence, in.SentenceType, in.FineAmount, post)

	return Result{
		OffenceID:                    in.Offence.OffenceID,
		OffenceName:                  in.Offence.CanonicalName,
		SentenceType:                 in.SentenceType,
		PrePleaTermMonths:            pre,
		PostPleaTermMonths:           post,
		MinimumSentenceTriggered:     minDecision.Triggered,
		MinimumFloorPrePleaMonths:    minDecision.FloorPreMonths,
		MinimumFloorPostPleaMonths:   minDecision.FloorPostMonths,
		ReleaseFraction:              release.Fraction,
		EstimatedTimeInCustodyMonths: estimated,
		VictimSurchargeGBP:           round2(surcharge),
		MatchedRange:                 PickSentencingRange(in.Culpability, in.Harm, matrixRows),
		Warnings:                     BuildWarnings(in, pre),
		Trace:                        trace,
	}
}
