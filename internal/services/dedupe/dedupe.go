// Package dedupe marks duplicate run items in two phases: exact normalized
// URL matches, then near-duplicate text similarity.
package dedupe

import (
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/models"
	"github.com/pjsousa/jobato-platform/internal/storage/sqlite"
)

// DefaultSimilarityThreshold is the Jaccard cutoff for the near-duplicate phase.
const DefaultSimilarityThreshold = 0.90

// Outcome summarizes one dedupe pass.
type Outcome struct {
	DuplicatesFound   int `json:"duplicatesFound"`
	CanonicalCount    int `json:"canonicalCount"`
	ExactDuplicates   int `json:"exactDuplicates"`
	SimilarDuplicates int `json:"similarDuplicates"`
}

// Service runs deduplication over a run database.
type Service struct {
	threshold float64
	logger    arbor.ILogger
}

// NewService creates a dedupe service with the default similarity threshold.
func NewService(logger arbor.ILogger) *Service {
	return &Service{threshold: DefaultSimilarityThreshold, logger: logger}
}

// Run marks duplicates for the run's items. Phase one groups rows by exact
// normalized URL and keeps the lowest id as canonical. Phase two compares
// the rows that survived phase one pairwise by text-shingle similarity. All
// marks land in one transaction.
func (s *Service) Run(storage *sqlite.ResultStorage, runID string) (Outcome, error) {
	items, err := storage.ListForDedupe(runID)
	if err != nil {
		return Outcome{}, err
	}
	if len(items) == 0 {
		return Outcome{}, nil
	}

	marks := make(map[int64]sqlite.DuplicateMark, len(items))
	outcome := Outcome{}

	// Phase 1: exact normalized URL groups, min-id canonical. Rows without
	// a normalized URL never group; singleton groups stay untouched.
	groups := make(map[string][]*models.RunItem)
	for _, item := range items {
		if item.NormalizedURL == "" {
			continue
		}
		groups[item.NormalizedURL] = append(groups[item.NormalizedURL], item)
	}

	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		canonical := group[0]
		for _, item := range group[1:] {
			if item.ID < canonical.ID {
				canonical = item
			}
		}
		for _, item := range group {
			if item.ID == canonical.ID {
				continue
			}
			marks[item.ID] = sqlite.DuplicateMark{
				ID: item.ID, IsDuplicate: true, IsHidden: true, CanonicalID: canonical.ID,
			}
			outcome.ExactDuplicates++
		}
		marks[canonical.ID] = sqlite.DuplicateMark{
			ID: canonical.ID, DuplicateCount: len(group) - 1,
		}
	}

	// Phase 2: near-duplicate text among the rows phase one did not mark.
	// Earlier ids win; rows without a signature are skipped.
	var remaining []*models.RunItem
	for _, item := range items {
		if !marks[item.ID].IsDuplicate {
			remaining = append(remaining, item)
		}
	}

	signatures := make(map[int64]map[string]bool, len(remaining))
	for _, item := range remaining {
		signatures[item.ID] = shingles(comparableText(item))
	}

	for i := 0; i < len(remaining); i++ {
		a := remaining[i]
		if marks[a.ID].IsDuplicate || len(signatures[a.ID]) == 0 {
			continue
		}
		similar := 0
		for j := i + 1; j < len(remaining); j++ {
			b := remaining[j]
			if marks[b.ID].IsDuplicate || len(signatures[b.ID]) == 0 {
				continue
			}
			if Jaccard(signatures[a.ID], signatures[b.ID]) >= s.threshold {
				marks[b.ID] = sqlite.DuplicateMark{
					ID: b.ID, IsDuplicate: true, IsHidden: true, CanonicalID: a.ID,
				}
				similar++
				outcome.SimilarDuplicates++
			}
		}
		if similar > 0 {
			marks[a.ID] = sqlite.DuplicateMark{ID: a.ID, DuplicateCount: similar}
		}
	}

	outcome.DuplicatesFound = outcome.ExactDuplicates + outcome.SimilarDuplicates
	outcome.CanonicalCount = len(items) - outcome.DuplicatesFound

	flat := make([]sqlite.DuplicateMark, 0, len(marks))
	for _, mark := range marks {
		flat = append(flat, mark)
	}

	if err := storage.ApplyDedupe(flat); err != nil {
		return Outcome{}, err
	}

	if s.logger != nil {
		s.logger.Info().
			Str("run_id", runID).
			Int("duplicates", outcome.DuplicatesFound).
			Int("canonical", outcome.CanonicalCount).
			Msg("Deduplication completed")
	}
	return outcome, nil
}

// comparableText joins the item's title, snippet, and extracted page text,
// skipping empty fields.
func comparableText(item *models.RunItem) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{item.Title, item.Snippet, item.VisibleText} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// shingles builds the 3-gram word shingle set of a text. Texts shorter than
// three words contribute a single shingle of the whole text.
func shingles(text string) map[string]bool {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool)
	if len(words) == 0 {
		return set
	}
	if len(words) < 3 {
		set[strings.Join(words, " ")] = true
		return set
	}
	for i := 0; i+3 <= len(words); i++ {
		set[strings.Join(words[i:i+3], " ")] = true
	}
	return set
}

// Jaccard computes set similarity. Two empty sets are identical (1.0);
// one empty set is entirely dissimilar (0.0).
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	intersection := 0
	for key := range a {
		if b[key] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
