/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Source is anything that can hand out trivia categories.
type Source interface {
	RandomCategoryID(ctx context.Context) (int, error)
	Category(ctx context.Context, id int) (RawCategory, error)
}

// JService reads categories from a jService-compatible HTTP API.
type JService struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewJService returns a client for the API rooted at baseURL. Requests are
// paced to rps per second with the given burst; rps <= 0 disables pacing.
func NewJService(baseURL string, timeout time.Duration, rps float64, burst int) *JService {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}

	return &JService{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

type randomClue struct {
	CategoryID *int `json:"category_id"`
}

type wireClue struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Value      *int   `json:"value"`
	AirDate    string `json:"airdate"`
	CategoryID int    `json:"category_id"`
}

type wireCategory struct {
	ID    int         `json:"id"`
	Title *string     `json:"title"`
	Clues *[]wireClue `json:"clues"`
}

func (j *JService) RandomCategoryID(ctx context.Context) (int, error) {
	var clues []randomClue
	if err := j.get(ctx, "/api/random", nil, &clues); err != nil {
		return 0, err
	}

	if len(clues) == 0 || clues[0].CategoryID == nil {
		return 0, fmt.Errorf("%w: random clue has no category id", ErrMalformedData)
	}

	return *clues[0].CategoryID, nil
}

func (j *JService) Category(ctx context.Context, id int) (RawCategory, error) {
	var wire wireCategory
	if err := j.get(ctx, "/api/category", url.Values{"id": {strconv.Itoa(id)}}, &wire); err != nil {
		return RawCategory{}, err
	}

	if wire.Title == nil {
		return RawCategory{}, fmt.Errorf("%w: category %d has no title", ErrMalformedData, id)
	}
	if wire.Clues == nil {
		return RawCategory{}, fmt.Errorf("%w: category %d has no clue list", ErrMalformedData, id)
	}

	cat := RawCategory{
		ID:    id,
		Title: *wire.Title,
		Clues: make([]RawClue, 0, len(*wire.Clues)),
	}
	for _, c := range *wire.Clues {
		cat.Clues = append(cat.Clues, RawClue{
			Question:   c.Question,
			Answer:     c.Answer,
			Value:      c.Value,
			AirDate:    c.AirDate,
			CategoryID: c.CategoryID,
		})
	}

	return cat, nil
}

func (j *JService) get(ctx context.Context, path string, query url.Values, v any) error {
	if err := j.limiter.Wait(ctx); err != nil {
		return err
	}

	u := j.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)

		return fmt.Errorf("GET %s: unexpected status %s", u, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedData, u, err)
	}

	return nil
}
