package passes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-passes/internal/models"
	passdb "ms-passes/internal/passes/db"
)

type RedemptionStatus string

const (
	RedemptionAllowed   RedemptionStatus = "allowed"
	RedemptionInvalid   RedemptionStatus = "invalid"
	RedemptionExhausted RedemptionStatus = "exhausted"
)

// RedemptionResult is the outcome of presenting a pass at the gate. Unknown and
// fully used passes are results, not errors.
type RedemptionResult struct {
	Status    RedemptionStatus
	Code      string
	EventID   int64
	UsedCount int
	Remaining int
}

func (r RedemptionResult) Allowed() bool {
	return r.Status == RedemptionAllowed
}

// Message is the text shown to the worker.
func (r RedemptionResult) Message() string {
	switch r.Status {
	case RedemptionAllowed:
		return fmt.Sprintf("Entry Allowed. Remaining uses: %d", r.Remaining)
	case RedemptionExhausted:
		return "Pass fully used"
	default:
		return "Invalid Pass"
	}
}

// NormalizeCode trims surrounding whitespace and upper-cases a typed-in code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Redeem consumes one use of the pass. The increment is a single conditional
// update, so concurrent redemptions of the same pass never exceed max_uses.
func (s *PassService) Redeem(ctx context.Context, code string) (RedemptionResult, error) {
	code = NormalizeCode(code)
	result := RedemptionResult{Status: RedemptionInvalid, Code: code}

	err := s.DB.InTx(ctx, func(ctx context.Context) error {
		pass, err := s.DB.GetPassByCode(ctx, code)
		if errors.Is(err, passdb.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up pass: %w", err)
		}
		result.EventID = pass.EventID

		event, err := s.DB.GetEventByID(ctx, pass.EventID)
		if err != nil {
			return fmt.Errorf("failed to load event %d: %w", pass.EventID, err)
		}

		ok, used, err := s.DB.ConditionalIncrementPass(ctx, code)
		if err != nil {
			return err
		}
		if !ok {
			result.Status = RedemptionExhausted
			result.UsedCount = event.MaxUses
			return nil
		}

		result.Status = RedemptionAllowed
		result.UsedCount = used
		result.Remaining = max(0, event.MaxUses-used)
		return nil
	})
	if err != nil {
		return RedemptionResult{}, err
	}

	s.Logger.LogRedemption(code, string(result.Status), result.Remaining)
	if result.Allowed() {
		s.publish(ctx, s.Topics.PassRedeemed, code, models.PassRedeemedEvent{
			EventID:    result.EventID,
			Code:       code,
			UsedCount:  result.UsedCount,
			Remaining:  result.Remaining,
			RedeemedAt: s.now().UTC().Format(time.RFC3339),
		})
	}
	return result, nil
}
