package passes

import (
	"context"
	"errors"
	"fmt"

	"ms-passes/internal/models"
	"ms-passes/internal/passes/codegen"
	passdb "ms-passes/internal/passes/db"
)

type GenerationResult struct {
	EventID   int64 `json:"event_id"`
	Requested int   `json:"requested"`
	Created   int   `json:"created"`
	Total     int   `json:"total"`
}

// GenerationError reports a batch that stopped early. The passes created before
// the failure are kept.
type GenerationError struct {
	Requested int
	Created   int
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generated %d of %d passes: %v", e.Created, e.Requested, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// GeneratePasses tops the event up to its total_passes. Passes that already
// exist are kept, so calling it again only creates what is missing. Concurrent
// calls for one event are serialised on the event row; a batch that runs out of
// codes still keeps the passes it created.
func (s *PassService) GeneratePasses(ctx context.Context, eventID int64) (GenerationResult, error) {
	var (
		result   GenerationResult
		claimErr error
	)
	err := s.DB.InTx(ctx, func(ctx context.Context) error {
		if err := s.DB.LockEvent(ctx, eventID); err != nil {
			if errors.Is(err, passdb.ErrNotFound) {
				return fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
			}
			return err
		}

		event, err := s.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}

		existing, err := s.DB.CountPassesByEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to count passes of event %d: %w", eventID, err)
		}

		result = GenerationResult{EventID: eventID, Requested: max(0, event.TotalPasses-existing), Total: existing}
		claim := func(ctx context.Context, code string) (bool, error) {
			return s.DB.InsertPassIfAbsent(ctx, eventID, code)
		}

		for result.Created < result.Requested {
			if _, err := codegen.Claim(ctx, s.Codes, s.MaxAttempts, claim); err != nil {
				claimErr = err
				return nil
			}
			result.Created++
			result.Total++
		}
		return nil
	})
	if err != nil {
		return GenerationResult{}, err
	}

	s.finishGeneration(ctx, result)
	if errors.Is(claimErr, codegen.ErrCodeSpaceExhausted) {
		return result, &GenerationError{Requested: result.Requested, Created: result.Created, Err: claimErr}
	}
	if claimErr != nil {
		return result, fmt.Errorf("failed to generate pass for event %d: %w", eventID, claimErr)
	}
	return result, nil
}

func (s *PassService) finishGeneration(ctx context.Context, result GenerationResult) {
	s.Logger.LogPass("GENERATE", result.EventID, fmt.Sprintf("created %d of %d, %d total", result.Created, result.Requested, result.Total))
	if result.Created == 0 {
		return
	}
	s.publish(ctx, s.Topics.PassesGenerated, eventKey(result.EventID), models.PassesGeneratedEvent{
		EventID:   result.EventID,
		Requested: result.Requested,
		Created:   result.Created,
		Total:     result.Total,
	})
}
