package workflow

import (
	"fmt"

	"github.com/google/uuid"

	"procurement/internal/model"
)

// LineProgress is the fulfilment state of one order line.
type LineProgress struct {
	DetailID    uuid.UUID
	Description string
	Ordered     int
	Released    int
}

func (p LineProgress) Remaining() int { return p.Ordered - p.Released }

// ReleaseLine is one requested release within a batch.
type ReleaseLine struct {
	DetailID uuid.UUID
	Quantity int
}

// CheckReleaseBatch validates a whole batch against persisted progress. Lines repeating the
// same detail are tallied together, so a batch can never release more than remains even
// when it names a detail twice. The first violation is returned; nothing is partial.
func CheckReleaseBatch(progress map[uuid.UUID]LineProgress, lines []ReleaseLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: batch is empty", ErrInvalidLine)
	}

	tally := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		p, ok := progress[line.DetailID]
		if !ok {
			return fmt.Errorf("%w: detail %s does not belong to this order", ErrInvalidLine, line.DetailID)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for detail %s must be positive", ErrInvalidLine, line.DetailID)
		}

		remaining := p.Remaining() - tally[line.DetailID]
		if line.Quantity > remaining {
			return &QuantityConflictError{
				DetailID:    line.DetailID,
				Description: p.Description,
				Remaining:   remaining,
				Requested:   line.Quantity,
			}
		}
		tally[line.DetailID] += line.Quantity
	}
	return nil
}

// RecomputeOrderStatus derives an order's status from its lines. The order is completed
// exactly when every line is fully released; otherwise current is kept. It is recomputed
// from scratch after every release batch, so the order releases arrive in does not matter.
func RecomputeOrderStatus(current string, lines []LineProgress) string {
	if current == model.OrderRejected || len(lines) == 0 {
		return current
	}
	for _, line := range lines {
		if line.Released != line.Ordered {
			return current
		}
	}
	return model.OrderCompleted
}
