package jeopardy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
)

// Curator turns one category id into a playable Category.
type Curator struct {
	Source Source

	// IntN picks a random index in [0, n). Defaults to math/rand/v2.IntN.
	IntN func(n int) int

	Logger Logger
}

func (c *Curator) intN(n int) int {
	if c.IntN != nil {
		return c.IntN(n)
	}

	return rand.IntN(n)
}

// CurateCategory fetches a category, keeps the clues from one randomly chosen
// viable air-date, fills in missing values and returns the clues sorted by
// ascending value.
func (c *Curator) CurateCategory(ctx context.Context, id int) (Category, error) {
	raw, err := c.Source.Category(ctx, id)
	if err != nil {
		return Category{}, fmt.Errorf("category %d: %w", id, err)
	}

	pool := CleanClues(raw.Clues)

	picked, date, err := c.pickAirDate(pool)
	if err != nil {
		return Category{}, fmt.Errorf("category %d: %w", id, err)
	}

	c.Logger.printf("CURATE: Category %d (%q) using %d clues from %s", id, raw.Title, len(picked), date)

	values := make([]*int, len(picked))
	clues := make([]Clue, len(picked))
	for i, rc := range picked {
		values[i] = rc.Value
		clues[i] = Clue{
			Question: rc.Question,
			Answer:   rc.Answer,
			State:    Hidden,
		}
	}

	filled, err := ImputeMissingPointValues(values)
	if err != nil {
		return Category{}, fmt.Errorf("category %d: %w", id, err)
	}
	for i := range clues {
		clues[i].Value = filled[i]
	}

	sort.SliceStable(clues, func(i, j int) bool {
		return clues[i].Value < clues[j].Value
	})

	return Category{
		Title: raw.Title,
		Clues: clues[:NumQuestionsPerCategory],
	}, nil
}

// pickAirDate draws air-dates at random until one of them has enough clues.
func (c *Curator) pickAirDate(pool []RawClue) ([]RawClue, string, error) {
	dates := airDates(pool)

	var picked []RawClue
	var date string

	for len(picked) < NumQuestionsPerCategory {
		if len(dates) == 0 {
			return nil, "", fmt.Errorf("%w: no air-date has %d playable clues", ErrMalformedData, NumQuestionsPerCategory)
		}

		i := c.intN(len(dates))
		date = dates[i]
		picked = cluesAiredOn(pool, date)

		dates = append(dates[:i], dates[i+1:]...)
	}

	return picked, date, nil
}
