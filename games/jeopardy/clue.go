/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

import (
	"fmt"
)

const (
	NumCategories           = 6
	NumQuestionsPerCategory = 5

	// InstrumentalPlaceholder marks a clue whose audio was never archived.
	InstrumentalPlaceholder = "[instrumental]"
)

// State is the reveal state of a single clue on the board.
type State int

const (
	Hidden State = iota
	Question
	Answer
)

func (s State) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Question:
		return "question"
	case Answer:
		return "answer"
	}

	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "hidden":
		*s = Hidden
	case "question":
		*s = Question
	case "answer":
		*s = Answer
	default:
		return fmt.Errorf("unknown clue state %q", text)
	}

	return nil
}

// RawClue is a clue as the trivia source returns it. Nothing about it is trusted.
type RawClue struct {
	Question   string
	Answer     string
	Value      *int // nil when the source has no value
	AirDate    string
	CategoryID int
}

// RawCategory is a category title plus every clue the source knows for it.
type RawCategory struct {
	ID    int
	Title string
	Clues []RawClue
}

// Clue is a cleaned, playable clue.
type Clue struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Value    int    `json:"value"`
	State    State  `json:"state"`
}

// Activate advances the clue one step: Hidden to Question, Question to Answer.
// Answer is terminal.
func (c *Clue) Activate() State {
	switch c.State {
	case Hidden:
		c.State = Question
	case Question:
		c.State = Answer
	}

	return c.State
}

// Category is a titled column of exactly NumQuestionsPerCategory clues,
// sorted by ascending value.
type Category struct {
	Title string `json:"title"`
	Clues []Clue `json:"clues"`
}
