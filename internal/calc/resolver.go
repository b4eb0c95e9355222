package calc

import (
	"context"
	"fmt"

	"github.com/courtwise/sentencing-service/internal/sentencing"
	"github.com/courtwise/sentencing-service/internal/store"
)

// ResolveOffence turns an offence selector into a catalog row. By id: missing
// row is 404, malformed UUID is 422 (from the store). By query: top fuzzy
// match of five, empty result is 404. Resolution trace lines are returned for
// prepending to the calculation trace.
func ResolveOffence(ctx context.Context, st store.Store, offenceID, offenceQuery *string) (*sentencing.OffenceRecord, []string, error) {
	var trace []string

	if offenceID != nil && *offenceID != "" {
		offence, err := st.FetchOffenceByID(ctx, *offenceID)
		if err != nil {
			return nil, nil, err
		}
		if offence == nil {
			return nil, nil, store.NewNotFoundError(fmt.Sprintf("Offence not found: %s", *offenceID))
		}
		return offence, trace, nil
	}

	if offenceQuery == nil || *offenceQuery == "" {
		return nil, nil, store.NewValidationError("Provide either offence_id or offence_query")
	}

	matches, err := st.SearchOffences(ctx, *offenceQuery, 5)
	if err != nil {
		return nil, nil, err
	}
	if len(matches) == 0 {
		return nil, nil, store.NewNotFoundError(fmt.Sprintf("No offence found for query: %s", *offenceQuery))
	}

	chosen := matches[0].OffenceRecord
	trace = append(trace, fmt.Sprintf("Resolved offence query '%s' to '%s' (%s).", *offenceQuery, chosen.CanonicalName, chosen.OffenceID))
	if len(matches) > 1 {
		trace = append(trace, "Multiple matches found; top similarity match selected automatically.")
	}
	return &chosen, trace, nil
}
