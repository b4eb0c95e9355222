package sentencing

import (
	"math"
	"testing"
	"time"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func makeOffence(overrides func(*OffenceRecord)) OffenceRecord {
	o := OffenceRecord{
		OffenceID:             "00000000-0000-0000-0000-000000000001",
		CanonicalName:         "Test offence",
		ShortName:             "Test offence",
		OffenceCategory:       "Assault offences",
		Provision:             "Offences Against the Person Act 1861 s.18",
		MaximumSentenceType:   "custody",
		MaximumSentenceAmount: "Life",
		SpecifiedViolent:      true,
	}
	if overrides != nil {
		overrides(&o)
	}
	return o
}

func makeInput(overrides func(*CalculationInput)) CalculationInput {
	in := CalculationInput{
		Offence:                makeOffence(nil),
		OffenceDate:            day(2024, 1, 1),
		ConvictionDate:         day(2024, 3, 1),
		SentenceDate:           day(2024, 5, 1),
		AgeAtOffence:           30,
		AgeAtConviction:        30,
		AgeAtSentence:          30,
		PleaStage:              PleaFirstStage,
		SentenceType:           SentenceDeterminateCustodial,
		PrePleaTermMonths:      floatPtr(24),
		ReplicateACEReleaseBug: true,
	}
	if overrides != nil {
		overrides(&in)
	}
	return in
}

func approxEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPleaFactorsExactRationals(t *testing.T) {
	cases := []struct {
		stage PleaStage
		want  float64
	}{
		{PleaFirstStage, 2.0 / 3.0},
		{PleaAfterFirstStageBeforeTrial, 3.0 / 4.0},
		{PleaDayOfTrial, 9.0 / 10.0},
		{PleaAfterTrialBegins, 19.0 / 20.0},
		{PleaNotGuilty, 1.0},
	}
	for _, c := range cases {
		if got := PleaFactor(c.stage); got != c.want {
			t.Fatalf("factor for %s: got %v want %v", c.stage, got, c.want)
		}
	}
}

func TestSentenceAfterPleaRoundsToTwoDP(t *testing.T) {
	post := SentenceAfterPlea(floatPtr(2), PleaFirstStage)
	if post == nil || *post != 1.33 {
		t.Fatalf("expected 1.33, got %v", post)
	}
	if SentenceAfterPlea(nil, PleaFirstStage) != nil {
		t.Fatal("nil pre must give nil post")
	}
}

func TestNotGuiltyPleaKeepsTerm(t *testing.T) {
	post := SentenceAfterPlea(floatPtr(12), PleaNotGuilty)
	if post == nil || *post != 12 {
		t.Fatalf("expected 12, got %v", post)
	}
}

func TestMinimumCodeATriggered(t *testing.T) {
	in := makeInput(func(in *CalculationInput) {
		in.Offence = makeOffence(func(o *OffenceRecord) { o.MinimumSentenceCode = "A" })
		in.PriorDomesticBurglaryCount = 2
	})
	d := MinimumSentenceDecision(in)
	if !d.Triggered {
		t.Fatalf("expected trigger, reason=%q", d.Reason)
	}
	if *d.FloorPreMonths != 36 || !approxEq(*d.FloorPostMonths, 28.8) {
		t.Fatalf("unexpected floors: pre=%v post=%v", *d.FloorPreMonths, *d.FloorPostMonths)
	}
	if d.Reason != "Domestic burglary minimum" {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestMinimumCodeANotGuiltyFullFloor(t *testing.T) {
	in := makeInput(func(in *CalculationInput) {
		in.Offence = makeOffence(func(o *OffenceRecord) { o.MinimumSentenceCode = "A" })
		in.PriorDomesticBurglaryCount = 2
		in.PleaStage = PleaNotGuilty
	})
	d := MinimumSentenceDecision(in)
	if !d.Triggered || *d.FloorPostMonths != 36 {
		t.Fatalf("not-guilty post floor should be 36, got %+v", d)
	}
}

func TestMinimumCodeBDateThreshold(t *testing.T) {
	in := makeInput(func(in *CalculationInput) {
		in.Offence = makeOffence(func(o *OffenceRecord) { o.MinimumSentenceCode = "B" })
		in.OffenceDate = day(1996, 1, 1)
		in.ConvictionDate = day(1996, 2, 1)
		in.SentenceDate = day(1996, 3, 1)
		in.PriorClassATraffickingCount = 3
	})
	d := MinimumSentenceDecision(in)
	if d.Triggered {
		t.Fatal("offence predates the 1997-10-01 commencement; must not trigger")
	}
	if d.Reason != "Conditions for B not met" {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestMinimumCodeBTriggered(t *testing.T) {
	in := makeInput(func(in *CalculationInput) {
		in.Offence = makeOffence(func(o *OffenceRecord) { o.MinimumSentenceCode = "B" })
		in.PriorClassATraffickingCount = 2
	})
	d := MinimumSentenceDecision(in)
	if !d.Triggered || *d.FloorPreMonths != 84 || !approxEq(*d.FloorPostMonths, 67.2) {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestMinimumFirearmsCodesNoPleaDiscount(t *testing.T) {
	for _, code := range []string{"C1", "C2", "C3", "C4"} {
		in := makeInput(func(in *CalculationInput) {
			in.Offence = makeOffence(func(o *OffenceRecord) { o.MinimumSentenceCode = code })
		})
		d := MinimumSentenceDecision(in)
		if !d.Triggered {
			t.Fatalf("%s: expected trigger, reason=%q", code, d.Reason)
		}
		if *d.FloorPreMonths != 60 || *d.FloorPostMonths != 60 {
			t.Fatalf("%s: firearms floor takes no plea discount, got pre=%v post=%v", code, *d.FloorPreMonths, *d.FloorPostMonths)
		}
	}
}

func TestMinimumFirearmsYouthFloor(t *testing.T) {
	in := makeInput(func(in *CalculationInput) {
		in.Offence = makeOffence(func(o *OffenceRecord) { o.MinimumSentenceCode = "C1" })
		in.AgeAtOffence = 17
		in.AgeAtConviction = 17
		in.AgeAtSentence = 17
	})
	d := MinimumSentenceDecision(in)
	if !d.Triggered || *d.FloorPreMonths != 36 || *d.FloorPostMonths != 36 {
		t.Fatalf("unexpected youth firearms decision %+v", d)
	}
}

func TestMinimumFirearmsDateThresholds(t *testing.T) {
	cases := []struct {
		code string
		date time.Time
		want bool
	}{
		{"C1", day(2004, 1, 21), false},
		{"C1", day(2004, 1, 22), true},
		{"C2", day(2007, 4, 5), false},
		{"C2", day(2007, 4, 6), true},
		{"C3", day(2014, 7, 13), false},
		{"C3", day(2014, 7, 14), true},
		{"C4", day(1950, 1, 1), true},
	}
	for _, c := range cases {
		in := makeInput(func(in *CalculationInput) {
			in.Offence = makeOffence(func(o *OffenceRecord) { o.MinimumSentenceCode = c.code })
			in.OffenceDate = c.date
			in.ConvictionDate = c.date
			in.SentenceDate = c.date
		})
		d := MinimumSentenceDecision(in)
		if d.Triggered != c.want {
			t.Fatalf("%s on %s: triggered=%v want %v", c.code, c.date.Format("2006-01-02"), d.Triggered, c.want)
		}
	}
}

func TestMinimumCodeDYouthDTONoPostFloor(t *testing.T) {
	in := makeInput(func(in *CalculationInput) {
		in.Offence = makeOffence(func(o *OffenceRecord) { o.MinimumSentenceCode = "D" })
		in.OffenceDate = day(2024, 1, 1)
		in.AgeAtOffence = 17
		in.AgeAtConviction = 17
		in.AgeAtSentence = 17
		in.PriorRelevantWeaponConviction = true
	})
	d := MinimumSentenceDecision(in)
	if !d.Triggered || *d.FloorPreMonths != 4 {
		t.Fatalf("unexpected decision %+v", d)
	}
	if d.FloorPostMonths != nil {
		t.Fatal("youth DTO route must carry no post-plea floor")
	}
	if d.Reason != "Weapon possession youth DTO minimum" {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestMinimumCodeDRequiresPriorConviction(t *testing.T) {
	in := makeInput(func(in *CalculationInput) {
		in.Offence = makeOffence(func(o *OffenceRecord) { o.MinimumSentenceCode = "D" })
	})
	d := MinimumSentenceDecision(in)
	if d.Triggered || d.Reason != "No qualifying prior conviction" {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestMinimumCodeEAdult(t *testing.T) {
	in := makeInput(func(in *CalculationInput) {
		in.Offence = makeOffence(func(o *OffenceRecord) { o.MinimumSentenceCode = "E" })
	})
	d := MinimumSentenceDecision(in)
	if !d.Triggered || *d.FloorPreMonths != 6 || !approxEq(*d.FloorPostMonths, 4.8) {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestMinimumOverrideDisapplies(t *testing.T) {
	in := makeInput(func(in *CalculationInput) {
		in.Offence = makeOffence(func(o *OffenceRecord) { o.MinimumSentenceCode = "A" })
		in.PriorDomesticBurglaryCount = 5
		in.MinimumSentenceUnjustOrExceptional = true
	})
	d := MinimumSentenceDecision(in)
	if d.Triggered {
		t.Fatal("override must disapply the minimum")
	}
	if d.Reason != "minimum disapplied by input override" {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestMinimumUnknownCode(t *testing.T) {
	in := makeInput(func(in *CalculationInput) {
		in.Offence = makeOffence(func(o *OffenceRecord) { o.MinimumSentenceCode = "Z" })
	})
	d := MinimumSentenceDecision(in)
	if d.Triggered || d.Reason != "Unsupported minimum code Z" {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestApplyFloorLiftsAndTraces(t *testing.T) {
	d := MinimumDecision{Triggered: true, FloorPreMonths: floatPtr(36), FloorPostMonths: floatPtr(28.8)}
	pre, post, trace := ApplyMinimumSentenceFloor(floatPtr(24), floatPtr(16), d)
	if *pre != 36 || *post != 28.8 {
		t.Fatalf("unexpected lifted terms pre=%v post=%v", *pre, *post)
	}
	if len(trace) != 2 {
		t.Fatalf("expected 2 trace lines, got %v", trace)
	}
	if trace[0] != "Pre-plea term raised from 24 to minimum floor 36 months" {
		t.Fatalf("unexpected trace line %q", trace[0])
	}
}

func TestApplyFloorSetsWhenNil(t *testing.T) {
	d := MinimumDecision{Triggered: true, FloorPreMonths: floatPtr(6)}
	pre, post, trace := ApplyMinimumSentenceFloor(nil, nil, d)
	if pre == nil || *pre != 6 || post != nil {
		t.Fatalf("unexpected terms pre=%v post=%v", pre, post)
	}
	if len(trace) != 1 || trace[0] != "Pre-plea term set to minimum floor 6 months" {
		t.Fatalf("unexpected trace %v", trace)
	}
}

func TestApplyFloorPassThroughWhenNotTriggered(t *testing.T) {
	pre, post, trace := ApplyMinimumSentenceFloor(floatPtr(12), floatPtr(8), MinimumDecision{})
	if *pre != 12 || *post != 8 || len(trace) != 0 {
		t.Fatalf("pass-through violated: pre=%v post=%v trace=%v", *pre, *post, trace)
	}
}

func TestReleaseLifeSentenceNoFraction(t *testing.T) {
	in := makeInput(func(in *CalculationInput) { in.SentenceType = SentenceMandatoryLifeSentence })
	d := ReleaseFractionDecision(in, floatPtr(240))
	if d.Fraction != nil {
		t.Fatalf("life sentence must have nil fraction, got %v", *d.Fraction)
	}
	if d.Reason != "Life sentence: release not represented as determinate fraction" {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestReleaseNonCustodialAndSuspended(t *testing.T) {
	in := makeInput(func(in *CalculationInput) { in.SentenceType = SentenceFine })
	if d := ReleaseFractionDecision(in, floatPtr(6)); d.Fraction != nil || d.Reason != "Non-custodial sentence" {
		t.Fatalf("unexpected decision %+v", d)
	}
	in.SentenceType = SentenceSuspendedSentenceOrder
	if d := ReleaseFractionDecision(in, floatPtr(6)); d.Fraction != nil || d.Reason != "Suspended sentence: no immediate custody term" {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestReleaseNoTerm(t *testing.T) {
	in := makeInput(nil)
	d := ReleaseFractionDecision(in, nil)
	if d.Fraction != nil || d.Reason != "No custodial term provided" {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestReleaseExtendedSentenceTwoThirds(t *testing.T) {
	in := makeInput(func(in *CalculationInput) { in.SentenceType = SentenceExtendedSentence })
	d := ReleaseFractionDecision(in, floatPtr(30))
	if d.Fraction == nil || !approxEq(*d.Fraction, 2.0/3.0) {
		t.Fatalf("unexpected fraction %v", d.Fraction)
	}
}

func TestReleaseLongSpecifiedLifeMaxTwoThirds(t *testing.T) {
	in := makeInput(nil)
	d := ReleaseFractionDecision(in, floatPtr(84))
	if d.Fraction == nil || !approxEq(*d.Fraction, 2.0/3.0) {
		t.Fatalf("unexpected fraction %v", d.Fraction)
	}
	if d.Reason != "Term >= 84m + life max + specified offence" {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestReleaseTerrorismRoute(t *testing.T) {
	in := makeInput(func(in *CalculationInput) {
		in.Offence = makeOffence(func(o *OffenceRecord) {
			o.SpecifiedViolent = false
			o.MaximumSentenceAmount = "10 years"
		})
		in.TerrorismFlag = true
	})
	d := ReleaseFractionDecision(in, floatPtr(12))
	if d.Fraction == nil || !approxEq(*d.Fraction, 2.0/3.0) || d.Reason != "Schedule 19ZA / terrorism route" {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestReleaseManslaughterMarkerTwoThirds(t *testing.T) {
	in := makeInput(func(in *CalculationInput) {
		in.Offence = makeOffence(func(o *OffenceRecord) {
			o.SpecifiedViolent = false
			o.SpecifiedSexual = false
			o.MaximumSentenceAmount = "Life"
			o.Provision = "Common law manslaughter"
			o.CanonicalName = "Manslaughter"
		})
		in.PleaStage = PleaNotGuilty
	})
	d := ReleaseFractionDecision(in, floatPtr(60))
	if d.Fraction == nil || !approxEq(*d.Fraction, 2.0/3.0) {
		t.Fatalf("unexpected fraction %v", d.Fraction)
	}
	if d.Reason != "Specified serious offence marker with term >= 48m" {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestReleaseACEBugSwapsHalves(t *testing.T) {
	// Theft-like offence: forty-percent regime holds.
	forty := makeInput(func(in *CalculationInput) {
		in.Offence = makeOffence(func(o *OffenceRecord) {
			o.SpecifiedViolent = false
			o.MaximumSentenceAmount = "10 years"
			o.Provision = "Theft Act 1968 s.1"
			o.OffenceCategory = "Theft offences"
		})
	})
	d := ReleaseFractionDecision(forty, floatPtr(8))
	if d.Fraction == nil || *d.Fraction != 0.5 {
		t.Fatalf("bug replication should give 0.5 for forty regime, got %v", d.Fraction)
	}

	forty.ReplicateACEReleaseBug = false
	d = ReleaseFractionDecision(forty, floatPtr(8))
	if d.Fraction == nil || *d.Fraction != 0.4 {
		t.Fatalf("corrected branch should give 0.4, got %v", d.Fraction)
	}
	if d.Reason != "Forty-percent regime" {
		t.Fatalf("unexpected reason %q", d.Reason)
	}
}

func TestReleaseACEBugNonFortyRegime(t *testing.T) {
	// Sexual offence category is excluded from the forty-percent regime.
	in := makeInput(func(in *CalculationInput) {
		in.Offence = makeOffence(func(o *OffenceRecord) {
			o.SpecifiedViolent = false
			o.SpecifiedSexual = false
			o.MaximumSentenceAmount = "10 years"
			o.OffenceCategory = "Sexual offences: sexual offence against an adult"
		})
	})
	d := ReleaseFractionDecision(in, floatPtr(12))
	if d.Fraction == nil || *d.Fraction != 0.4 {
		t.Fatalf("bug replication should give 0.4 for non-forty regime, got %v", d.Fraction)
	}

	in.ReplicateACEReleaseBug = false
	d = ReleaseFractionDecision(in, floatPtr(12))
	if d.Fraction == nil || *d.Fraction != 0.5 || d.Reason != "Halfway release regime" {
		t.Fatalf("corrected branch should give 0.5, got %+v", d)
	}
}

func TestFortyPercentRegimeExclusions(t *testing.T) {
	base := makeOffence(func(o *OffenceRecord) {
		o.SpecifiedViolent = false
		o.OffenceCategory = "Theft offences"
		o.Provision = "Theft Act 1968 s.1"
	})
	if !IsFortyPercentRegime(base, 12) {
		t.Fatal("plain offence should sit in the forty-percent regime")
	}

	violent := base
	violent.SpecifiedViolent = true
	if !IsFortyPercentRegime(violent, 48) {
		t.Fatal("specified violent at exactly 48 months stays in regime")
	}
	if IsFortyPercentRegime(violent, 49) {
		t.Fatal("specified violent above 48 months must be excluded")
	}

	stalking := base
	stalking.Provision = "Protection from Harassment Act 1997 s.4A stalking involving fear of violence"
	if IsFortyPercentRegime(stalking, 12) {
		t.Fatal("harassment+stalking provision must be excluded")
	}

	excluded := base
	excluded.Provision = "Serious Crime Act 2015 s.76 controlling or coercive behaviour"
	if IsFortyPercentRegime(excluded, 12) {
		t.Fatal("marker provision must be excluded")
	}
}

func TestHasLifeMaximumCaseFolded(t *testing.T) {
	if !HasLifeMaximum(makeOffence(func(o *OffenceRecord) { o.MaximumSentenceAmount = "LIFE imprisonment" })) {
		t.Fatal("case-folded life match failed")
	}
	if HasLifeMaximum(makeOffence(func(o *OffenceRecord) { o.MaximumSentenceAmount = "14 years" })) {
		t.Fatal("false positive life max")
	}
}
