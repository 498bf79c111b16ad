// Package bulk turns raw multi-line target text into classified entries.
package bulk

import (
	"strings"

	"github.com/secdesk/abuse-portal/internal/model"
	"github.com/secdesk/abuse-portal/internal/validate"
)

// Parse splits raw text on newlines, trims each line, drops empty lines, and
// classifies every remaining line against the validator for the selected
// threat type. Entries preserve input order and include invalid lines; the
// counts tell the caller how many of each it saw. Parsing is idempotent and
// recomputed on every edit, so it does no I/O.
func Parse(raw string, tt model.ThreatType) model.ValidationResult {
	valid := validatorFor(tt)

	var result model.ValidationResult
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ok := valid(line)
		if ok {
			result.ValidCount++
		} else {
			result.InvalidCount++
		}
		result.Entries = append(result.Entries, model.TargetEntry{Raw: line, Valid: ok})
	}
	return result
}

// validatorFor selects the per-line validator for a threat type. Unrecognized
// threat types accept every non-empty line; those targets end up in the
// report notes rather than a dedicated field, so there is no shape to check.
func validatorFor(tt model.ThreatType) func(string) bool {
	switch tt {
	case model.ThreatIP:
		return validate.IsIP
	case model.ThreatURL:
		return validate.IsURL
	case model.ThreatSubscription:
		return validate.IsSubscriptionID
	default:
		return func(string) bool { return true }
	}
}
