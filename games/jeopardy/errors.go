package jeopardy

import "errors"

var (
	// ErrMalformedData is returned when the source omits a required field, or
	// when its clues cannot be turned into a playable category.
	ErrMalformedData = errors.New("malformed trivia data")

	// ErrStarved is returned when the sampler runs out of attempts before it
	// finds enough playable categories.
	ErrStarved = errors.New("no playable categories found")

	ErrOutOfRange = errors.New("clue position out of range")
)

// Logger receives progress lines from the pipeline. A nil Logger discards them.
type Logger func(format string, args ...any)

func (l Logger) printf(format string, args ...any) {
	if l == nil {
		return
	}

	l(format, args...)
}
