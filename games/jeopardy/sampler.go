package jeopardy

import (
	"context"
	"fmt"
)

// Sampler draws random categories from a Source until it has NumCategories
// of them with enough clean clues to play.
type Sampler struct {
	Source Source

	// MaxAttempts caps how many random categories are examined per call.
	// Zero means no cap: the sampler keeps drawing until ctx is done.
	MaxAttempts int

	Logger Logger
}

// SampleCategoryIDs returns NumCategories category ids, each of which had
// more than NumQuestionsPerCategory clues left after CleanClues. The same id
// may be returned more than once.
func (s *Sampler) SampleCategoryIDs(ctx context.Context) ([]int, error) {
	ids := make([]int, 0, NumCategories)

	for attempts := 0; len(ids) < NumCategories; attempts++ {
		if s.MaxAttempts > 0 && attempts >= s.MaxAttempts {
			return nil, fmt.Errorf("%w: %d of %d accepted after %d attempts", ErrStarved, len(ids), NumCategories, attempts)
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id, err := s.Source.RandomCategoryID(ctx)
		if err != nil {
			return nil, fmt.Errorf("random category: %w", err)
		}

		cat, err := s.Source.Category(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("category %d: %w", id, err)
		}

		clean := len(CleanClues(cat.Clues))
		if clean <= NumQuestionsPerCategory {
			s.Logger.printf("SAMPLE: Rejected category %d (%q): %d clean clues", id, cat.Title, clean)

			continue
		}

		s.Logger.printf("SAMPLE: Accepted category %d (%q): %d clean clues", id, cat.Title, clean)
		ids = append(ids, id)
	}

	return ids, nil
}
