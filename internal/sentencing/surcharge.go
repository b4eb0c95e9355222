package sentencing

import (
	"math"
	"time"
)

// surchargeBand is one date era of the victim surcharge order.
//
// Adult indexing: 0 conditional discharge, 1 fine floor, 2 fine cap,
// 3 community/YRO, 4 suspended <=6m, 5 suspended >6m, 6 custody <=6m,
// 7 custody 6-24m, 8 custody >24m.
// Youth indexing: 0 conditional discharge, 1 fine/community/YRO,
// 2 custody or suspended.
type surchargeBand struct {
	start   time.Time
	adult   [9]float64
	youth   [3]float64
	finePct float64
}

// surchargeBands in descending date order; the first band whose start is on
// or before the offence date applies. Offences before 2012-10-01 carry no
// surcharge.
var surchargeBands = []surchargeBand{
	{
		start:   time.Date(2022, 6, 16, 0, 0, 0, 0, time.UTC),
		adult:   [9]float64{26, 0, 2000, 114, 154, 187, 154, 187, 228},
		youth:   [3]float64{20, 26, 41},
		finePct: 0.40,
	},
	{
		start:   time.Date(2020, 4, 14, 0, 0, 0, 0, time.UTC),
		adult:   [9]float64{22, 34, 190, 95, 128, 156, 128, 156, 190},
		youth:   [3]float64{17, 22, 34},
		finePct: 0.10,
	},
	{
		start:   time.Date(2019, 6, 28, 0, 0, 0, 0, time.UTC),
		adult:   [9]float64{21, 32, 181, 90, 122, 149, 122, 149, 181},
		youth:   [3]float64{16, 21, 32},
		finePct: 0.10,
	},
	{
		start:   time.Date(2016, 4, 8, 0, 0, 0, 0, time.UTC),
		adult:   [9]float64{20, 30, 170, 85, 115, 140, 115, 140, 170},
		youth:   [3]float64{15, 20, 30},
		finePct: 0.10,
	},
	{
		start:   time.Date(2012, 10, 1, 0, 0, 0, 0, time.UTC),
		adult:   [9]float64{15, 20, 120, 60, 80, 100, 80, 100, 120},
		youth:   [3]float64{10, 15, 20},
		finePct: 0.10,
	},
}

// VictimSurcharge computes the mandatory surcharge in GBP from the offence
// date band, offender age at offence, sentence type, and for fines the fine
// amount. The custodial term is the post-plea term.
func VictimSurcharge(offenceDate time.Time, ageAtOffence int, sentenceType SentenceType, fineAmount, custodialTermMonths *float64) float64 {
	var band *surchargeBand
	for i := range surchargeBands {
		if !offenceDate.Before(surchargeBands[i].start) {
			band = &surchargeBands[i]
			break
		}
	}
	if band == nil {
		return 0
	}

	adult := ageAtOffence >= 18
	if !adult {
		switch {
		case sentenceType == SentenceConditionalDischarge:
			return band.youth[0]
		case sentenceType == SentenceFine,
			sentenceType == SentenceYouthRehabilitationOrder,
			sentenceType == SentenceCommunityOrder:
			return band.youth[1]
		case IsCustodial(sentenceType), sentenceType == SentenceSuspendedSentenceOrder:
			return band.youth[2]
		}
		return 0
	}

	switch sentenceType {
	case SentenceConditionalDischarge:
		return band.adult[0]

	case SentenceFine:
		if fineAmount == nil {
			return 0
		}
		amount := math.Round(*fineAmount * band.finePct)
		if band.finePct == 0.40 {
			return math.Min(band.adult[2], amount)
		}
		return math.Min(band.adult[2], math.Max(band.adult[1], amount))

	case SentenceCommunityOrder, SentenceYouthRehabilitationOrder:
		return band.adult[3]

	case SentenceSuspendedSentenceOrder:
		months := 0.0
		if custodialTermMonths != nil {
			months = *custodialTermMonths
		}
		if months <= 6 {
			return band.adult[4]
		}
		return band.adult[5]
	}

	if IsCustodial(sentenceType) {
		months := 0.0
		if custodialTermMonths != nil {
			months = *custodialTermMonths
		}
		switch {
		case months <= 6:
			return band.adult[6]
		case months <= 24:
			return band.adult[7]
		default:
			return band.adult[8]
		}
	}

	return 0
}
