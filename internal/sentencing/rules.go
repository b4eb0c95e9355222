package sentencing

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// pleaFactors are exact rationals applied to the pre-plea term before
// rounding.
var pleaFactors = map[PleaStage]float64{
	PleaFirstStage:                 2.0 / 3.0,
	PleaAfterFirstStageBeforeTrial: 3.0 / 4.0,
	PleaDayOfTrial:                 9.0 / 10.0,
	PleaAfterTrialBegins:           19.0 / 20.0,
	PleaNotGuilty:                  1.0,
}

var custodialSentenceTypes = map[SentenceType]bool{
	SentenceDeterminateCustodial:      true,
	SentenceDTO:                       true,
	SentenceYOIDetention:              true,
	SentenceExtendedSentence:          true,
	SentenceSpecialCustodialSentence:  true,
	SentenceDiscretionaryLifeSentence: true,
	SentenceMandatoryLifeSentence:     true,
}

// seriousProvisionMarkers force two-thirds release at 48 months or more when
// present in the provision or canonical name.
var seriousProvisionMarkers = []string{
	"manslaughter",
	"soliciting to commit murder",
	"grievous bodily harm with intent",
	"wounding with intent",
	"gbh with intent",
}

// fortyPercentExclusions remove an offence from the forty-percent release
// regime when present in the legislative provision.
var fortyPercentExclusions = []string{
	"serious crime act 2015 s.76",
	"serious crime act 2015 s.75a",
	"sentencing act 2020 s.363",
	"family law act 1996 s.42a",
	"domestic abuse act 2021 s.39",
	"national security act",
	"official secrets act",
}

// Statutory commencement dates for the minimum-sentence regimes.
var (
	classATraffickingStart = time.Date(1997, 10, 1, 0, 0, 0, 0, time.UTC)
	weaponPossessionStart  = time.Date(2015, 7, 17, 0, 0, 0, 0, time.UTC)
	firearmsStarts         = map[string]time.Time{
		"C1": time.Date(2004, 1, 22, 0, 0, 0, 0, time.UTC),
		"C2": time.Date(2007, 4, 6, 0, 0, 0, 0, time.UTC),
		"C3": time.Date(2014, 7, 14, 0, 0, 0, 0, time.UTC),
		"C4": time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
	}
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// IsCustodial reports whether the sentence type carries a custodial term.
func IsCustodial(t SentenceType) bool {
	return custodialSentenceTypes[t]
}

// HasLifeMaximum reports whether the offence carries a life maximum, as
// recorded in the catalog's maximum sentence amount text.
func HasLifeMaximum(offence OffenceRecord) bool {
	return strings.Contains(strings.ToLower(offence.MaximumSentenceAmount), "life")
}

// PleaFactor returns the discount factor for a plea stage. Unknown stages
// take no discount.
func PleaFactor(stage PleaStage) float64 {
	if f, ok := pleaFactors[stage]; ok {
		return f
	}
	return 1.0
}

// SentenceAfterPlea applies the plea discount to the pre-plea term, rounded
// to two decimal places. A nil pre-plea term yields nil.
func SentenceAfterPlea(prePleaTermMonths *float64, stage PleaStage) *float64 {
	if prePleaTermMonths == nil {
		return nil
	}
	return floatPtr(round2(*prePleaTermMonths * PleaFactor(stage)))
}

// MinimumSentenceDecision evaluates the statutory minimum-sentence regimes
// (codes A, B, C1-C4, D, E) against the offender facts. The guilty-plea
// discount on a floor is fixed at 0.8 of the pre-plea floor, not the plea
// factor table.
func MinimumSentenceDecision(in CalculationInput) MinimumDecision {
	if in.MinimumSentenceUnjustOrExceptional {
		return MinimumDecision{Reason: "minimum disapplied by input override"}
	}

	code := strings.ToUpper(strings.TrimSpace(in.Offence.MinimumSentenceCode))
	if code == "" {
		return MinimumDecision{}
	}

	adult := in.AgeAtSentence >= 18
	youth1617 := in.AgeAtSentence >= 16 && in.AgeAtSentence <= 17
	guilty := in.PleaStage != PleaNotGuilty

	switch code {
	case "A":
		if adult && in.PriorDomesticBurglaryCount >= 2 {
			post := 36.0
			if guilty {
				post = 28.8
			}
			return MinimumDecision{true, floatPtr(36), floatPtr(post), "Domestic burglary minimum"}
		}
		return MinimumDecision{Reason: "Conditions for A not met"}

	case "B":
		if adult && !in.OffenceDate.Before(classATraffickingStart) && in.PriorClassATraffickingCount >= 2 {
			post := 84.0
			if guilty {
				post = 67.2
			}
			return MinimumDecision{true, floatPtr(84), floatPtr(post), "Class A trafficking minimum"}
		}
		return MinimumDecision{Reason: "Conditions for B not met"}

	case "C1", "C2", "C3", "C4":
		if in.OffenceDate.Before(firearmsStarts[code]) {
			return MinimumDecision{Reason: "Firearms date threshold not met"}
		}
		if adult {
			return MinimumDecision{true, floatPtr(60), floatPtr(60), "Firearms adult minimum"}
		}
		if youth1617 {
			return MinimumDecision{true, floatPtr(36), floatPtr(36), "Firearms youth minimum"}
		}
		return MinimumDecision{Reason: "Under 16"}

	case "D":
		if in.OffenceDate.Before(weaponPossessionStart) {
			return MinimumDecision{Reason: "Weapon possession date threshold not met"}
		}
		if in.AgeAtOffence < 16 {
			return MinimumDecision{Reason: "Under 16 at offence"}
		}
		if !in.PriorRelevantWeaponConviction {
			return MinimumDecision{Reason: "No qualifying prior conviction"}
		}
		if in.AgeAtConviction >= 18 {
			post := 6.0
			if guilty {
				post = 4.8
			}
			return MinimumDecision{true, floatPtr(6), floatPtr(post), "Weapon possession adult minimum"}
		}
		if in.AgeAtConviction >= 16 && in.AgeAtConviction <= 17 {
			// DTO route: no post-plea floor.
			return MinimumDecision{true, floatPtr(4), nil, "Weapon possession youth DTO minimum"}
		}
		return MinimumDecision{Reason: "Under 16 at conviction"}

	case "E":
		if adult {
			post := 6.0
			if guilty {
				post = 4.8
			}
			return MinimumDecision{true, floatPtr(6), floatPtr(post), "Threats with weapon adult minimum"}
		}
		if youth1617 {
			return MinimumDecision{true, floatPtr(4), nil, "Threats with weapon youth DTO minimum"}
		}
		return MinimumDecision{Reason: "Under 16"}
	}

	return MinimumDecision{Reason: fmt.Sprintf("Unsupported minimum code %s", code)}
}

// ApplyMinimumSentenceFloor lifts the pre and post terms up to any triggered
// floor, returning the adjusted terms and the trace lines emitted.
func ApplyMinimumSentenceFloor(pre, post *float64, decision MinimumDecision) (*float64, *float64, []string) {
	var trace []string
	if !decision.Triggered {
		return pre, post, trace
	}

	if decision.FloorPreMonths != nil {
		switch {
		case pre == nil:
			pre = floatPtr(*decision.FloorPreMonths)
			trace = append(trace, fmt.Sprintf("Pre-plea term set to minimum floor %v months", *decision.FloorPreMonths))
		case *pre < *decision.FloorPreMonths:
			trace = append(trace, fmt.Sprintf("Pre-plea term raised from %v to minimum floor %v months", *pre, *decision.FloorPreMonths))
			pre = floatPtr(*decision.FloorPreMonths)
		}
	}

	if decision.FloorPostMonths != nil {
		switch {
		case post == nil:
			post = floatPtr(*decision.FloorPostMonths)
			trace = append(trace, fmt.Sprintf("Post-plea term set to minimum floor %v months", *decision.FloorPostMonths))
		case *post < *decision.FloorPostMonths:
			trace = append(trace, fmt.Sprintf("Post-plea term raised from %v to minimum floor %v months", *post, *decision.FloorPostMonths))
			post = floatPtr(*decision.FloorPostMonths)
		}
	}

	return pre, post, trace
}

// IsFortyPercentRegime reports whether the offence and term fall under the
// post-2022 forty-percent release point. All matches are case-folded
// substring checks.
func IsFortyPercentRegime(offence OffenceRecord, termMonths float64) bool {
	if termMonths > 48 && offence.SpecifiedViolent {
		return false
	}
	if strings.Contains(strings.ToLower(offence.OffenceCategory), "sexual offence") {
		return false
	}
	provision := strings.ToLower(offence.Provision)
	if strings.Contains(provision, "protection from harassment") && strings.Contains(provision, "stalking") {
		return false
	}
	for _, marker := range fortyPercentExclusions {
		if strings.Contains(provision, marker) {
			return false
		}
	}
	return true
}

// ReleaseFractionDecision selects the release fraction for the sentence.
// Branch order is significant: the first matching branch wins.
func ReleaseFractionDecision(in CalculationInput, postPleaTermMonths *float64) ReleaseDecision {
	offence := in.Offence

	switch in.SentenceType {
	case SentenceMandatoryLifeSentence, SentenceDiscretionaryLifeSentence:
		return ReleaseDecision{nil, "Life sentence: release not represented as determinate fraction"}
	case SentenceCommunityOrder, SentenceYouthRehabilitationOrder, SentenceFine, SentenceConditionalDischarge:
		return ReleaseDecision{nil, "Non-custodial sentence"}
	case SentenceSuspendedSentenceOrder:
		return ReleaseDecision{nil, "Suspended sentence: no immediate custody term"}
	}

	if postPleaTermMonths == nil {
		return ReleaseDecision{nil, "No custodial term provided"}
	}

	if in.SentenceType == SentenceExtendedSentence || in.SentenceType == SentenceSpecialCustodialSentence {
		return ReleaseDecision{floatPtr(2.0 / 3.0), "Extended/special custodial release at two-thirds"}
	}

	if !IsCustodial(in.SentenceType) {
		return ReleaseDecision{nil, "Sentence type not treated as custodial"}
	}

	term := *postPleaTermMonths
	lifeMax := HasLifeMaximum(offence)

	if term >= 84 && lifeMax && (offence.SpecifiedSexual || offence.SpecifiedViolent) {
		return ReleaseDecision{floatPtr(2.0 / 3.0), "Term >= 84m + life max + specified offence"}
	}

	if offence.Schedule19ZA || in.TerrorismFlag {
		return ReleaseDecision{floatPtr(2.0 / 3.0), "Schedule 19ZA / terrorism route"}
	}

	if term >= 48 {
		if lifeMax && offence.SpecifiedSexual {
			return ReleaseDecision{floatPtr(2.0 / 3.0), "Sexual offence with life max and term >= 48m"}
		}
		provisionOrName := strings.ToLower(offence.Provision + " " + offence.CanonicalName)
		for _, marker := range seriousProvisionMarkers {
			if strings.Contains(provisionOrName, marker) {
				return ReleaseDecision{floatPtr(2.0 / 3.0), "Specified serious offence marker with term >= 48m"}
			}
		}
	}

	fortyPercent := IsFortyPercentRegime(offence, term)
	if in.ReplicateACEReleaseBug {
		// Deliberately swapped: the upstream engine returns the halves the
		// wrong way round, and consumers depend on it.
		if fortyPercent {
			return ReleaseDecision{floatPtr(0.5), "Replicating sentenceACE inconsistency for forty-percent regime"}
		}
		return ReleaseDecision{floatPtr(0.4), "Replicating sentenceACE inconsistency for non-forty-percent regime"}
	}

	if fortyPercent {
		return ReleaseDecision{floatPtr(0.4), "Forty-percent regime"}
	}
	return ReleaseDecision{floatPtr(0.5), "Halfway release regime"}
}
