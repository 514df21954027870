package guideline

import (
	"sort"

	"adscribe/internal/logging"
)

// ContextualCap bounds the number of medium-tier records a selection may
// carry, keeping the generated instruction volume bounded no matter how
// many records match.
const ContextualCap = 3

// Selection holds the records chosen for one request, partitioned by
// placement role. Selections are ephemeral: they depend on the subject
// text and are recomputed per request, never cached.
type Selection struct {
	// Critical records lead the prompt; all eligible critical records
	// are included.
	Critical []*Record

	// High records trail the prompt body; all eligible high records are
	// included.
	High []*Record

	// Contextual records are eligible medium-tier records with positive
	// relevance, capped at ContextualCap.
	Contextual []*Record
}

// Total returns the number of selected records across all roles.
func (s *Selection) Total() int {
	return len(s.Critical) + len(s.High) + len(s.Contextual)
}

// Selector filters the corpus by request applicability and ranks the
// survivors by topical relevance to the subject text.
type Selector struct {
	contextualCap int
}

// NewSelector creates a selector with the default contextual cap.
func NewSelector() *Selector {
	return &Selector{contextualCap: ContextualCap}
}

// SetContextualCap overrides the contextual slot count. Values below zero
// are clamped to zero.
func (s *Selector) SetContextualCap(cap int) {
	if cap < 0 {
		cap = 0
	}
	s.contextualCap = cap
}

// Select returns the guideline selection for one request. An empty corpus
// or a request nothing applies to yields an empty selection, never an
// error.
func (s *Selector) Select(corpus *Corpus, rc *RequestContext) *Selection {
	timer := logging.StartTimer(logging.CategorySelection, "Selector.Select")
	defer timer.Stop()

	selection := &Selection{}
	if corpus == nil {
		return selection
	}

	subject := ""
	if rc != nil {
		subject = rc.SubjectText
	}

	var contextual []scoredRecord
	for _, r := range corpus.All() {
		if !r.Matches(rc) {
			continue
		}

		relevance := r.Relevance(subject)

		switch r.Tier {
		case TierCritical:
			selection.Critical = append(selection.Critical, r)
		case TierHigh:
			selection.High = append(selection.High, r)
		case TierMedium:
			// Contextual slots require strictly positive relevance, so
			// keyword-less records can never claim one.
			if relevance > 0 {
				contextual = append(contextual, scoredRecord{record: r, relevance: relevance})
			}
		}
		// TierLow records are never selected.
	}

	// Critical and high tiers are fully included; relevance only breaks
	// ties for ordering.
	sortByRelevance(selection.Critical, subject)
	sortByRelevance(selection.High, subject)

	sort.SliceStable(contextual, func(i, j int) bool {
		if contextual[i].relevance != contextual[j].relevance {
			return contextual[i].relevance > contextual[j].relevance
		}
		return contextual[i].record.ID < contextual[j].record.ID
	})
	if len(contextual) > s.contextualCap {
		contextual = contextual[:s.contextualCap]
	}
	for _, sr := range contextual {
		selection.Contextual = append(selection.Contextual, sr.record)
	}

	logging.Get(logging.CategorySelection).Debug(
		"Selected %d records (critical=%d high=%d contextual=%d)",
		selection.Total(), len(selection.Critical), len(selection.High), len(selection.Contextual),
	)

	return selection
}

type scoredRecord struct {
	record    *Record
	relevance int
}

// sortByRelevance orders records by relevance descending, ID ascending as
// a deterministic tie-break.
func sortByRelevance(records []*Record, subject string) {
	sort.SliceStable(records, func(i, j int) bool {
		ri := records[i].Relevance(subject)
		rj := records[j].Relevance(subject)
		if ri != rj {
			return ri > rj
		}
		return records[i].ID < records[j].ID
	})
}
