/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

import (
	"fmt"
)

// RemoveDuplicateQuestions keeps the first clue for each distinct question
// text, keeping their order.
func RemoveDuplicateQuestions(clues []RawClue) []RawClue {
	seen := make(map[string]bool, len(clues))
	out := make([]RawClue, 0, len(clues))

	for _, c := range clues {
		if seen[c.Question] {
			continue
		}
		seen[c.Question] = true
		out = append(out, c)
	}

	return out
}

// airDates returns each distinct air-date in the order it first appears.
func airDates(clues []RawClue) []string {
	seen := make(map[string]bool)
	dates := make([]string, 0)

	for _, c := range clues {
		if seen[c.AirDate] {
			continue
		}
		seen[c.AirDate] = true
		dates = append(dates, c.AirDate)
	}

	return dates
}

func cluesAiredOn(clues []RawClue, date string) []RawClue {
	out := make([]RawClue, 0, NumQuestionsPerCategory)
	for _, c := range clues {
		if c.AirDate == date {
			out = append(out, c)
		}
	}

	return out
}

// Viable reports whether a single air-date's clues can be played as a set.
func Viable(group []RawClue) bool {
	if len(group) < NumQuestionsPerCategory {
		return false
	}

	for _, c := range group {
		if c.Question == "" || c.Answer == "" || c.Question == InstrumentalPlaceholder {
			return false
		}
	}

	return true
}

// GroupAndFilter splits clues by air-date, drops every group that is not
// Viable, and concatenates the rest. Group order follows first appearance.
func GroupAndFilter(clues []RawClue) []RawClue {
	out := make([]RawClue, 0, len(clues))

	for _, date := range airDates(clues) {
		group := cluesAiredOn(clues, date)
		if Viable(group) {
			out = append(out, group...)
		}
	}

	return out
}

// CleanClues de-duplicates clues and then applies GroupAndFilter.
func CleanClues(clues []RawClue) []RawClue {
	return GroupAndFilter(RemoveDuplicateQuestions(clues))
}

// ImputeMissingPointValues fills nil entries from their neighbors, scanning
// left to right so earlier fills count as known:
//
//	first:    next / 2
//	last:     prev*2 - prev2
//	interior: (prev + next) / 2
//
// Adjacent gaps cannot be resolved and return ErrMalformedData, as does any
// value, given or imputed, that is not positive.
func ImputeMissingPointValues(values []*int) ([]int, error) {
	resolved := make([]*int, len(values))
	copy(resolved, values)

	at := func(i, missing int) (int, error) {
		if i < 0 || i >= len(resolved) || resolved[i] == nil {
			return 0, fmt.Errorf("%w: cannot impute value at position %d of %d", ErrMalformedData, missing, len(resolved))
		}

		return *resolved[i], nil
	}

	for i := range resolved {
		if resolved[i] != nil {
			continue
		}

		var v int

		switch i {
		case 0:
			next, err := at(i+1, i)
			if err != nil {
				return nil, err
			}
			v = next / 2
		case len(resolved) - 1:
			prev, err := at(i-1, i)
			if err != nil {
				return nil, err
			}
			prev2, err := at(i-2, i)
			if err != nil {
				return nil, err
			}
			v = prev*2 - prev2
		default:
			prev, err := at(i-1, i)
			if err != nil {
				return nil, err
			}
			next, err := at(i+1, i)
			if err != nil {
				return nil, err
			}
			v = (prev + next) / 2
		}

		resolved[i] = &v
	}

	out := make([]int, len(resolved))
	for i, v := range resolved {
		if *v <= 0 {
			return nil, fmt.Errorf("%w: non-positive value %d at position %d of %d", ErrMalformedData, *v, i, len(resolved))
		}
		out[i] = *v
	}

	return out, nil
}
