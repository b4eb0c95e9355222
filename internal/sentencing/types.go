package sentencing

import "time"

// PleaStage identifies the procedural moment at which a guilty plea was
// indicated. It selects the plea discount factor.
type PleaStage string

const (
	PleaFirstStage                 PleaStage = "first_stage"
	PleaAfterFirstStageBeforeTrial PleaStage = "after_first_stage_before_trial"
	PleaDayOfTrial                 PleaStage = "day_of_trial"
	PleaAfterTrialBegins           PleaStage = "after_trial_begins"
	PleaNotGuilty                  PleaStage = "not_guilty"
)

// PleaStages lists every valid plea stage, in discount order.
var PleaStages = []PleaStage{
	PleaFirstStage,
	PleaAfterFirstStageBeforeTrial,
	PleaDayOfTrial,
	PleaAfterTrialBegins,
	PleaNotGuilty,
}

// SentenceType is the disposal selected by the sentencer.
type SentenceType string

const (
	SentenceConditionalDischarge       SentenceType = "conditional_discharge"
	SentenceFine                       SentenceType = "fine"
	SentenceCommunityOrder             SentenceType = "community_order"
	SentenceYouthRehabilitationOrder   SentenceType = "youth_rehabilitation_order"
	SentenceDeterminateCustodial       SentenceType = "determinate_custodial_sentence"
	SentenceSuspendedSentenceOrder     SentenceType = "suspended_sentence_order"
	SentenceDTO                        SentenceType = "dto"
	SentenceYOIDetention               SentenceType = "yoi_detention"
	SentenceExtendedSentence           SentenceType = "extended_sentence"
	SentenceSpecialCustodialSentence   SentenceType = "special_custodial_sentence"
	SentenceDiscretionaryLifeSentence  SentenceType = "discretionary_life_sentence"
	SentenceMandatoryLifeSentence      SentenceType = "mandatory_life_sentence"
)

// SentenceTypes lists every valid sentence type.
var SentenceTypes = []SentenceType{
	SentenceConditionalDischarge,
	SentenceFine,
	SentenceCommunityOrder,
	SentenceYouthRehabilitationOrder,
	SentenceDeterminateCustodial,
	SentenceSuspendedSentenceOrder,
	SentenceDTO,
	SentenceYOIDetention,
	SentenceExtendedSentence,
	SentenceSpecialCustodialSentence,
	SentenceDiscretionaryLifeSentence,
	SentenceMandatoryLifeSentence,
}

// OffenceRecord is the canonical offence row resolved from the catalog.
// It is immutable for the lifetime of a request.
type OffenceRecord struct {
	OffenceID             string `json:"offence_id"`
	CanonicalName         string `json:"canonical_name"`
	ShortName             string `json:"short_name"`
	OffenceCategory       string `json:"offence_category"`
	Provision             string `json:"provision"`
	GuidelineURL          string `json:"guideline_url"`
	LegislationURL        string `json:"legislation_url"`
	MaximumSentenceType   string `json:"maximum_sentence_type"`
	MaximumSentenceAmount string `json:"maximum_sentence_amount"`
	MinimumSentenceCode   string `json:"minimum_sentence_code"`
	SpecifiedViolent      bool   `json:"specified_violent"`
	SpecifiedSexual       bool   `json:"specified_sexual"`
	SpecifiedTerrorist    bool   `json:"specified_terrorist"`
	ListedOffence         bool   `json:"listed_offence"`
	Schedule18AOffence    bool   `json:"schedule18a_offence"`
	Schedule19ZA          bool   `json:"schedule19za"`
	CTANotification       bool   `json:"cta_notification"`
}

// MatrixRow is one culpability/harm cell of a sentencing guideline matrix.
type MatrixRow struct {
	MatrixID          string `json:"matrix_id"`
	GuidelineID       string `json:"guideline_id"`
	OffenceID         string `json:"offence_id"`
	Culpability       string `json:"culpability"`
	Harm              string `json:"harm"`
	StartingPointText string `json:"starting_point_text"`
	CategoryRangeText string `json:"category_range_text"`
}

// RangeRecord is the matched starting point and category range for the
// requested culpability/harm labels.
type RangeRecord struct {
	Culpability       string `json:"culpability"`
	Harm              string `json:"harm"`
	StartingPointText string `json:"starting_point_text"`
	CategoryRangeText string `json:"category_range_text"`
}

// CalculationInput is the validated request driving one calculation.
// Dates are date-only, UTC midnight. Optional numeric fields are nil when
// absent from the request.
type CalculationInput struct {
	Offence OffenceRecord

	OffenceDate    time.Time
	ConvictionDate time.Time
	SentenceDate   time.Time

	AgeAtOffence    int
	AgeAtConviction int
	AgeAtSentence   int

	PleaStage    PleaStage
	SentenceType SentenceType

	Culpability string
	Harm        string

	PrePleaTermMonths *float64
	ExtensionMonths   float64
	FineAmount        *float64

	DangerousnessAssessed         bool
	PriorListedOffenceWithCustody bool
	PriorDomesticBurglaryCount    int
	PriorClassATraffickingCount   int
	PriorRelevantWeaponConviction bool
	TerrorismFlag                 bool

	MinimumSentenceUnjustOrExceptional bool
	ReplicateACEReleaseBug             bool
}

// MinimumDecision is the outcome of the statutory minimum-sentence rules.
// FloorPostMonths may be nil even when triggered: youth DTO routes carry no
// post-plea floor.
type MinimumDecision struct {
	Triggered       bool
	FloorPreMonths  *float64
	FloorPostMonths *float64
	Reason          string
}

// ReleaseDecision selects the determinate release fraction, or nil when
// release is not represented as a fraction.
type ReleaseDecision struct {
	Fraction *float64
	Reason   string
}

// Result is the complete outcome of a sentencing calculation.
type Result struct {
	OffenceID                     string
	OffenceName                   string
	SentenceType                  SentenceType
	PrePleaTermMonths             *float64
	PostPleaTermMonths            *float64
	MinimumSentenceTriggered      bool
	MinimumFloorPrePleaMonths     *float64
	MinimumFloorPostPleaMonths    *float64
	ReleaseFraction               *float64
	EstimatedTimeInCustodyMonths  *float64
	VictimSurchargeGBP            float64
	MatchedRange                  *RangeRecord
	Warnings                      []string
	Trace                         []string
}

// ValidPleaStage reports whether s is a member of the plea stage enum.
func ValidPleaStage(s PleaStage) bool {
	for _, v := range PleaStages {
		if v == s {
			return true
		}
	}
	return false
}

// ValidSentenceType reports whether s is a member of the sentence type enum.
func ValidSentenceType(s SentenceType) bool {
	for _, v := range SentenceTypes {
		if v == s {
			return true
		}
	}
	return false
}

// ParseDate parses an ISO-8601 date string as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func floatPtr(v float64) *float64 { return &v }
