package httpapi

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/courtwise/sentencing-service/internal/calc"
	"github.com/courtwise/sentencing-service/internal/chat"
	"github.com/courtwise/sentencing-service/internal/sentencing"
)

// FieldError is one entry of the validation error envelope.
type FieldError struct {
	Loc   []any  `json:"loc"`
	Msg   string `json:"msg"`
	Type  string `json:"type"`
	Input any    `json:"input,omitempty"`
}

// fields collects validation errors against a strict field set. Unknown keys
// are rejected; every violation is reported, not just the first.
type fields struct {
	raw    map[string]json.RawMessage
	loc    []any
	known  map[string]bool
	errors []FieldError
}

func newFields(raw map[string]json.RawMessage, loc []any) *fields {
	return &fields{raw: raw, loc: loc, known: map[string]bool{}}
}

func (f *fields) addError(name string, msg, typ string, input any) {
	loc := append(append([]any{}, f.loc...), name)
	f.errors = append(f.errors, FieldError{Loc: loc, Msg: msg, Type: typ, Input: input})
}

func (f *fields) addRootError(msg, typ string) {
	f.errors = append(f.errors, FieldError{Loc: append([]any{}, f.loc...), Msg: msg, Type: typ})
}

func (f *fields) lookup(name string) (json.RawMessage, bool) {
	f.known[name] = true
	v, ok := f.raw[name]
	if !ok || string(v) == "null" {
		return nil, false
	}
	return v, true
}

func (f *fields) requireMissing(name string) {
	f.addError(name, "Field required", "missing", nil)
}

// finish reports unknown keys. Deterministic order for stable envelopes.
func (f *fields) finish() {
	var extras []string
	for k := range f.raw {
		if !f.known[k] {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	for _, k := range extras {
		var input any
		_ = json.Unmarshal(f.raw[k], &input)
		f.addError(k, "Extra inputs are not permitted", "extra_forbidden", input)
	}
}

func (f *fields) optionalString(name string) *string {
	v, ok := f.lookup(name)
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		f.addError(name, "Input should be a valid string", "string_type", rawInput(v))
		return nil
	}
	return &s
}

func (f *fields) requiredString(name string) string {
	v, ok := f.lookup(name)
	if !ok {
		f.requireMissing(name)
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		f.addError(name, "Input should be a valid string", "string_type", rawInput(v))
		return ""
	}
	return s
}

func (f *fields) requiredDate(name string) time.Time {
	v, ok := f.lookup(name)
	if !ok {
		f.requireMissing(name)
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		f.addError(name, "Input should be a valid date", "date_type", rawInput(v))
		return time.Time{}
	}
	d, err := sentencing.ParseDate(s)
	if err != nil {
		f.addError(name, "Input should be a valid date in YYYY-MM-DD format", "date_parsing", s)
		return time.Time{}
	}
	return d
}

func (f *fields) intInRange(name string, required bool, def, min, max int) int {
	v, ok := f.lookup(name)
	if !ok {
		if required {
			f.requireMissing(name)
		}
		return def
	}
	var n float64
	if err := json.Unmarshal(v, &n); err != nil || n != math.Trunc(n) {
		f.addError(name, "Input should be a valid integer", "int_type", rawInput(v))
		return def
	}
	i := int(n)
	if i < min {
		f.addError(name, fmt.Sprintf("Input should be greater than or equal to %d", min), "greater_than_equal", i)
		return def
	}
	if i > max {
		f.addError(name, fmt.Sprintf("Input should be less than or equal to %d", max), "less_than_equal", i)
		return def
	}
	return i
}

func (f *fields) optionalNonNegativeFloat(name string) *float64 {
	v, ok := f.lookup(name)
	if !ok {
		return nil
	}
	var n float64
	if err := json.Unmarshal(v, &n); err != nil {
		f.addError(name, "Input should be a valid number", "float_type", rawInput(v))
		return nil
	}
	if n < 0 {
		f.addError(name, "Input should be greater than or equal to 0", "greater_than_equal", n)
		return nil
	}
	return &n
}

func (f *fields) floatWithDefault(name string, def float64) float64 {
	if p := f.optionalNonNegativeFloat(name); p != nil {
		return *p
	}
	return def
}

func (f *fields) boolWithDefault(name string, def bool) bool {
	v, ok := f.lookup(name)
	if !ok {
		return def
	}
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		f.addError(name, "Input should be a valid boolean", "bool_type", rawInput(v))
		return def
	}
	return b
}

func (f *fields) pleaStage(name string) sentencing.PleaStage {
	v, ok := f.lookup(name)
	if !ok {
		f.requireMissing(name)
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		f.addError(name, literalMsg(pleaStageLiterals()), "literal_error", rawInput(v))
		return ""
	}
	stage := sentencing.PleaStage(s)
	if !sentencing.ValidPleaStage(stage) {
		f.addError(name, literalMsg(pleaStageLiterals()), "literal_error", s)
		return ""
	}
	return stage
}

func (f *fields) sentenceType(name string) sentencing.SentenceType {
	v, ok := f.lookup(name)
	if !ok {
		f.requireMissing(name)
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		f.addError(name, literalMsg(sentenceTypeLiterals()), "literal_error", rawInput(v))
		return ""
	}
	st := sentencing.SentenceType(s)
	if !sentencing.ValidSentenceType(st) {
		f.addError(name, literalMsg(sentenceTypeLiterals()), "literal_error", s)
		return ""
	}
	return st
}

func pleaStageLiterals() []string {
	out := make([]string, len(sentencing.PleaStages))
	for i, s := range sentencing.PleaStages {
		out[i] = string(s)
	}
	return out
}

func sentenceTypeLiterals() []string {
	out := make([]string, len(sentencing.SentenceTypes))
	for i, s := range sentencing.SentenceTypes {
		out[i] = string(s)
	}
	return out
}

func literalMsg(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return "Input should be " + strings.Join(quoted, " or ")
}

func rawInput(v json.RawMessage) any {
	var out any
	_ = json.Unmarshal(v, &out)
	return out
}

// parseCalculationRequest validates a calculate_sentence body at the given
// loc prefix and builds the calc request. The returned request is only usable
// when the error list is empty.
func parseCalculationRequest(raw map[string]json.RawMessage, loc []any, body json.RawMessage) (calc.Request, []FieldError) {
	f := newFields(raw, loc)

	req := calc.Request{Raw: body}
	req.OffenceID = f.optionalString("offence_id")
	req.OffenceQuery = f.optionalString("offence_query")

	in := &req.Input
	in.OffenceDate = f.requiredDate("offence_date")
	in.ConvictionDate = f.requiredDate("conviction_date")
	in.SentenceDate = f.requiredDate("sentence_date")

	in.AgeAtOffence = f.intInRange("age_at_offence", true, 0, 10, 120)
	in.AgeAtConviction = f.intInRange("age_at_conviction", true, 0, 10, 120)
	in.AgeAtSentence = f.intInRange("age_at_sentence", true, 0, 10, 120)

	in.PleaStage = f.pleaStage("plea_stage")
	in.SentenceType = f.sentenceType("sentence_type")

	if p := f.optionalString("culpability"); p != nil {
		in.Culpability = *p
	}
	if p := f.optionalString("harm"); p != nil {
		in.Harm = *p
	}

	in.PrePleaTermMonths = f.optionalNonNegativeFloat("pre_plea_term_months")
	in.ExtensionMonths = f.floatWithDefault("extension_months", 0)
	in.FineAmount = f.optionalNonNegativeFloat("fine_amount")

	in.DangerousnessAssessed = f.boolWithDefault("dangerousness_assessed", false)
	in.PriorListedOffenceWithCustody = f.boolWithDefault("prior_listed_offence_with_custody", false)
	in.PriorDomesticBurglaryCount = f.intInRange("prior_domestic_burglary_count", false, 0, 0, math.MaxInt32)
	in.PriorClassATraffickingCount = f.intInRange("prior_class_a_trafficking_count", false, 0, 0, math.MaxInt32)
	in.PriorRelevantWeaponConviction = f.boolWithDefault("prior_relevant_weapon_conviction", false)
	in.TerrorismFlag = f.boolWithDefault("terrorism_flag", false)

	in.MinimumSentenceUnjustOrExceptional = f.boolWithDefault("minimum_sentence_unjust_or_exceptional", false)
	in.ReplicateACEReleaseBug = f.boolWithDefault("replicate_ace_release_bug", true)

	if emptyStr(req.OffenceID) && emptyStr(req.OffenceQuery) {
		f.addRootError("Value error, Provide either offence_id or offence_query", "value_error")
	}

	f.finish()
	return req, f.errors
}

type searchRequest struct {
	Query     string
	OffenceID *string
	TopK      int
}

func parseSearchRequest(raw map[string]json.RawMessage) (searchRequest, []FieldError) {
	f := newFields(raw, []any{"body"})
	req := searchRequest{}
	req.Query = f.requiredString("query")
	req.OffenceID = f.optionalString("offence_id")
	req.TopK = f.intInRange("top_k", false, 6, 1, 20)
	f.finish()
	return req, f.errors
}

func parseChatRequest(raw map[string]json.RawMessage) (chat.Request, []FieldError) {
	f := newFields(raw, []any{"body"})
	req := chat.Request{}
	req.Message = f.requiredString("message")
	req.OffenceID = f.optionalString("offence_id")
	req.OffenceQuery = f.optionalString("offence_query")
	req.TopK = f.intInRange("top_k", false, 5, 1, 20)

	if v, ok := f.lookup("calculation"); ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(v, &nested); err != nil {
			f.addError("calculation", "Input should be a valid dictionary or object", "model_type", rawInput(v))
		} else {
			nestedReq, nestedErrs := parseCalculationRequest(nested, []any{"body", "calculation"}, v)
			// The offence selector may be inherited from the outer request.
			nestedErrs = dropSelectorError(nestedErrs, req.OffenceID, req.OffenceQuery)
			if len(nestedErrs) > 0 {
				f.errors = append(f.errors, nestedErrs...)
			} else {
				req.Calculation = &nestedReq
			}
		}
	}

	f.finish()
	return req, f.errors
}

// dropSelectorError removes the nested missing-selector violation when the
// outer chat request carries an offence context to inherit.
func dropSelectorError(errs []FieldError, outerID, outerQuery *string) []FieldError {
	if emptyStr(outerID) && emptyStr(outerQuery) {
		return errs
	}
	out := errs[:0]
	for _, e := range errs {
		if e.Type == "value_error" && strings.Contains(e.Msg, "Provide either offence_id or offence_query") {
			continue
		}
		out = append(out, e)
	}
	return out
}

func emptyStr(p *string) bool { return p == nil || *p == "" }
