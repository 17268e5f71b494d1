package services

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/codyseavey/graded-ledger/backend/internal/models"
)

// ObservationResultKind tags what an ObservationSource returned
type ObservationResultKind int

const (
	// ObservationValue carries one observation
	ObservationValue ObservationResultKind = iota
	// ObservationSkip moves on to the next venue/status pass
	ObservationSkip
	// ObservationEnd finishes collection across all remaining passes
	ObservationEnd
	// ObservationCancel aborts the whole run with nothing persisted
	ObservationCancel
)

// ObservationResult is one pull from an ObservationSource
type ObservationResult struct {
	Kind        ObservationResultKind
	Observation models.Observation
}

// ObservationSource supplies observations one at a time. The valuation
// flow is identical whether the source is a human prompt, a file
// replay or a test fixture. Malformed entries are the source's problem:
// it recovers locally (a prompt reprompts) and only ever hands back a
// well-formed result.
type ObservationSource interface {
	Next(venue models.Venue, status models.ListingStatus) (ObservationResult, error)
}

// CollectObservations walks every venue/status pass in fixed order,
// pulling from source until it skips, ends or cancels. The venue and
// status of each returned observation are stamped from the current
// pass.
func CollectObservations(card *models.Card, source ObservationSource) ([]models.Observation, error) {
	var collected []models.Observation
	for _, venue := range models.AllVenues() {
		for _, status := range models.AllListingStatuses() {
		pass:
			for {
				result, err := source.Next(venue, status)
				if err != nil {
					return nil, err
				}
				switch result.Kind {
				case ObservationValue:
					obs := result.Observation
					obs.Venue = venue
					obs.Status = status
					if err := obs.Validate(); err != nil {
						return nil, fmt.Errorf("cert %s: %v", card.Cert, err)
					}
					collected = append(collected, obs)
				case ObservationSkip:
					break pass
				case ObservationEnd:
					if len(collected) == 0 {
						return nil, fmt.Errorf("cert %s: %w", card.Cert, ErrNoObservations)
					}
					return collected, nil
				case ObservationCancel:
					return nil, fmt.Errorf("cert %s: %w", card.Cert, ErrCancelled)
				}
			}
		}
	}
	if len(collected) == 0 {
		return nil, fmt.Errorf("cert %s: %w", card.Cert, ErrNoObservations)
	}
	return collected, nil
}

// SliceSource replays a fixed observation list: everything in order,
// regardless of the requested pass, then end. Used by file replays and
// tests.
type SliceSource struct {
	obs []models.Observation
	pos int
}

// NewSliceSource wraps a fixed observation list
func NewSliceSource(obs []models.Observation) *SliceSource {
	return &SliceSource{obs: obs}
}

// Next implements ObservationSource
func (s *SliceSource) Next(models.Venue, models.ListingStatus) (ObservationResult, error) {
	if s.pos >= len(s.obs) {
		return ObservationResult{Kind: ObservationEnd}, nil
	}
	obs := s.obs[s.pos]
	s.pos++
	return ObservationResult{Kind: ObservationValue, Observation: obs}, nil
}

// PromptSource collects observations interactively from an operator.
// Input lines are "price,grade" pairs; "c" skips the current pass, "e"
// finishes collection and "q" cancels the run. Malformed lines are
// reported and reprompted, never surfaced to the engine.
type PromptSource struct {
	in       *bufio.Scanner
	out      io.Writer
	lastPass string
}

// NewPromptSource prompts on out and reads operator input from in
func NewPromptSource(in io.Reader, out io.Writer) *PromptSource {
	return &PromptSource{in: bufio.NewScanner(in), out: out}
}

// Next implements ObservationSource
func (p *PromptSource) Next(venue models.Venue, status models.ListingStatus) (ObservationResult, error) {
	pass := fmt.Sprintf("%s (%s)", venue, status)
	if pass != p.lastPass {
		fmt.Fprintf(p.out, "\nYou are now inspecting items on %s\n", pass)
		p.lastPass = pass
	}

	for {
		fmt.Fprintf(p.out, "Input the price and grade separated by a comma, e.g. '10000,5'.\n[Enter 'c' to skip, 'e' to finish, 'q' to quit].\n > ")
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return ObservationResult{}, err
			}
			// EOF behaves like finishing collection
			return ObservationResult{Kind: ObservationEnd}, nil
		}

		switch line := strings.TrimSpace(p.in.Text()); line {
		case "c":
			fmt.Fprintln(p.out, "Skipping.")
			return ObservationResult{Kind: ObservationSkip}, nil
		case "e":
			return ObservationResult{Kind: ObservationEnd}, nil
		case "q":
			return ObservationResult{Kind: ObservationCancel}, nil
		default:
			obs, err := parsePromptLine(line)
			if err != nil {
				fmt.Fprintf(p.out, "Invalid entry: %v\n", err)
				continue
			}
			return ObservationResult{Kind: ObservationValue, Observation: obs}, nil
		}
	}
}

// parsePromptLine parses a "price,grade" pair and range-checks it
func parsePromptLine(line string) (models.Observation, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return models.Observation{}, fmt.Errorf("expected 'price,grade', got %q", line)
	}
	price, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return models.Observation{}, fmt.Errorf("price %q is not a number", parts[0])
	}
	grade, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return models.Observation{}, fmt.Errorf("grade %q is not a number", parts[1])
	}
	if price <= 0 {
		return models.Observation{}, fmt.Errorf("price must be greater than 0")
	}
	if grade < 1 || grade > 10 {
		return models.Observation{}, fmt.Errorf("grade must be between 1 and 10")
	}
	return models.Observation{Price: price, Grade: grade}, nil
}
