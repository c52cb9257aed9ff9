/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Board is one game's worth of categories. It is built once by a Builder and
// only changes afterwards through Activate.
type Board struct {
	Categories []Category `json:"categories"`
}

// Clue returns the clue at the given column and row.
func (b *Board) Clue(category, clue int) (*Clue, error) {
	if category < 0 || category >= len(b.Categories) {
		return nil, fmt.Errorf("%w: category %d", ErrOutOfRange, category)
	}

	clues := b.Categories[category].Clues
	if clue < 0 || clue >= len(clues) {
		return nil, fmt.Errorf("%w: clue %d in category %d", ErrOutOfRange, clue, category)
	}

	return &clues[clue], nil
}

// Activate advances the reveal state of one clue and returns the new state.
func (b *Board) Activate(category, clue int) (State, error) {
	c, err := b.Clue(category, clue)
	if err != nil {
		return Hidden, err
	}

	return c.Activate(), nil
}

// Builder runs the whole setup pipeline: sample ids, then curate each one.
type Builder struct {
	Sampler *Sampler
	Curator *Curator

	// Concurrency bounds how many categories are curated at once.
	Concurrency int
}

// NewBuilder wires a Sampler and Curator around the same source.
func NewBuilder(src Source, maxAttempts, concurrency int, logger Logger) *Builder {
	return &Builder{
		Sampler: &Sampler{
			Source:      src,
			MaxAttempts: maxAttempts,
			Logger:      logger,
		},
		Curator: &Curator{
			Source: src,
			Logger: logger,
		},
		Concurrency: concurrency,
	}
}

// Build returns a fresh board. Category order matches the order the sampler
// produced the ids in. Any failure discards the whole board.
func (b *Builder) Build(ctx context.Context) (*Board, error) {
	ids, err := b.Sampler.SampleCategoryIDs(ctx)
	if err != nil {
		return nil, err
	}

	categories := make([]Category, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	if b.Concurrency > 0 {
		g.SetLimit(b.Concurrency)
	}

	for i, id := range ids {
		g.Go(func() error {
			cat, err := b.Curator.CurateCategory(gctx, id)
			if err != nil {
				return err
			}
			categories[i] = cat

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Board{Categories: categories}, nil
}
