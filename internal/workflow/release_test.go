package workflow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/model"
)

func TestCheckReleaseBatch(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	progress := map[uuid.UUID]LineProgress{
		a: {DetailID: a, Description: "Bond paper", Ordered: 10, Released: 6},
		b: {DetailID: b, Description: "Toner", Ordered: 2, Released: 0},
	}

	t.Run("within remaining", func(t *testing.T) {
		assert.NoError(t, CheckReleaseBatch(progress, []ReleaseLine{{a, 4}, {b, 1}}))
	})

	t.Run("over remaining names line and quantities", func(t *testing.T) {
		err := CheckReleaseBatch(progress, []ReleaseLine{{b, 1}, {a, 5}})
		var qc *QuantityConflictError
		require.ErrorAs(t, err, &qc)
		assert.Equal(t, a, qc.DetailID)
		assert.Equal(t, "Bond paper", qc.Description)
		assert.Equal(t, 4, qc.Remaining)
		assert.Equal(t, 5, qc.Requested)
	})

	t.Run("same detail twice is tallied", func(t *testing.T) {
		err := CheckReleaseBatch(progress, []ReleaseLine{{a, 3}, {a, 3}})
		var qc *QuantityConflictError
		require.ErrorAs(t, err, &qc)
		assert.Equal(t, 1, qc.Remaining)
		assert.Equal(t, 3, qc.Requested)

		assert.NoError(t, CheckReleaseBatch(progress, []ReleaseLine{{a, 2}, {a, 2}}))
	})

	t.Run("foreign detail", func(t *testing.T) {
		err := CheckReleaseBatch(progress, []ReleaseLine{{uuid.New(), 1}})
		assert.ErrorIs(t, err, ErrInvalidLine)
	})

	t.Run("non positive quantity", func(t *testing.T) {
		assert.ErrorIs(t, CheckReleaseBatch(progress, []ReleaseLine{{a, 0}}), ErrInvalidLine)
	})

	t.Run("empty batch", func(t *testing.T) {
		assert.ErrorIs(t, CheckReleaseBatch(progress, nil), ErrInvalidLine)
	})
}

func TestRecomputeOrderStatus(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	partial := []LineProgress{
		{DetailID: a, Ordered: 10, Released: 10},
		{DetailID: b, Ordered: 5, Released: 2},
	}
	assert.Equal(t, model.OrderForPO, RecomputeOrderStatus(model.OrderForPO, partial))

	full := []LineProgress{
		{DetailID: b, Ordered: 5, Released: 5},
		{DetailID: a, Ordered: 10, Released: 10},
	}
	assert.Equal(t, model.OrderCompleted, RecomputeOrderStatus(model.OrderPending, full))

	// idempotent
	assert.Equal(t, model.OrderCompleted, RecomputeOrderStatus(model.OrderCompleted, full))

	assert.Equal(t, model.OrderRejected, RecomputeOrderStatus(model.OrderRejected, full))
	assert.Equal(t, model.OrderPending, RecomputeOrderStatus(model.OrderPending, nil))
}
