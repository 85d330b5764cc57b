package inventory

import (
	"fmt"
	"strings"
)

var (
	ErrNoMatch   = fmt.Errorf("no candidate matched")
	ErrAmbiguous = fmt.Errorf("more than one candidate matched")
)

// MatchError reports a failed cardinality check at a named resolution stage.
// The full candidate list is carried so the caller can narrow their query.
type MatchError struct {
	Stage      string
	Query      string
	Candidates []string

	kind error
}

func (e *MatchError) Error() string {
	candidates := "none"
	if len(e.Candidates) > 0 {
		candidates = strings.Join(e.Candidates, ", ")
	}
	return fmt.Sprintf(
		"%s stage: %v for query %q (candidates: %s)",
		e.Stage, e.kind, e.Query, candidates,
	)
}

func (e *MatchError) Unwrap() error { return e.kind }

// SelectOne is the substring filter with cardinality check applied at every
// selection stage: of the candidates containing query, exactly one must
// remain. Existing callers rely on partial names, so this deliberately never
// upgrades to exact matching.
func SelectOne(stage, query string, candidates []string) (string, error) {
	var hits []string
	for _, c := range candidates {
		if strings.Contains(c, query) {
			hits = append(hits, c)
		}
	}
	switch len(hits) {
	case 1:
		return hits[0], nil
	case 0:
		return "", &MatchError{Stage: stage, Query: query, Candidates: candidates, kind: ErrNoMatch}
	default:
		return "", &MatchError{Stage: stage, Query: query, Candidates: hits, kind: ErrAmbiguous}
	}
}

// exactlyOne enforces the same cardinality policy on lookups whose filtering
// already happened server-side (tag-equality instance queries).
func exactlyOne(stage, query string, candidates []string) (string, error) {
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return "", &MatchError{Stage: stage, Query: query, kind: ErrNoMatch}
	default:
		return "", &MatchError{Stage: stage, Query: query, Candidates: candidates, kind: ErrAmbiguous}
	}
}
