package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/database/dbtest"
	"procurement/internal/model"
	"procurement/internal/repository"
)

func seedUser(t *testing.T, repo repository.UserRepository, username, role string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", Password: "x", Role: role}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestSequenceRepository_NextIsMonotonicPerPrefix(t *testing.T) {
	db := dbtest.New(t)
	repo := repository.NewSequenceRepository(db)
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		got, err := repo.Next(ctx, "V-2026-")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := repo.Next(ctx, "PO-2026-")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}

func TestSequenceRepository_RollbackReleasesNothing(t *testing.T) {
	db := dbtest.New(t)
	repo := repository.NewSequenceRepository(db)
	tx := repository.NewTransactionManager(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := tx.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := repo.Next(txCtx, "REQ-20260101-")
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.Next(ctx, "REQ-20260101-")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestApprovalRepository_AppendAndHistory(t *testing.T) {
	db := dbtest.New(t)
	users := repository.NewUserRepository(db)
	repo := repository.NewApprovalRepository(db)
	ctx := context.Background()

	director := seedUser(t, users, "director", model.RoleExecutiveDirector)
	voucherID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, model.SubjectVoucher, voucherID, model.ApprovalLog{
		UserID: director.ID, Status: model.VoucherForAudit, Remarks: "first", ApprovedAt: base,
	}))
	require.NoError(t, repo.Append(ctx, model.SubjectVoucher, voucherID, model.ApprovalLog{
		UserID: director.ID, Status: model.VoucherForCheck, Remarks: "second", ApprovedAt: base.Add(time.Hour),
	}))
	require.NoError(t, repo.Append(ctx, model.SubjectPettyCash, voucherID, model.ApprovalLog{
		UserID: director.ID, Status: model.PettyCashSubmitted,
	}))

	history, err := repo.History(ctx, model.SubjectVoucher, voucherID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.VoucherForAudit, history[0].Status)
	assert.Equal(t, model.VoucherForCheck, history[1].Status)
	assert.Equal(t, "director", history[1].Username)

	count, err := repo.Count(ctx, model.SubjectPettyCash, voucherID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.Error(t, repo.Append(ctx, model.ApprovalSubject("canvas"), voucherID, model.ApprovalLog{UserID: director.ID}))
}

func TestOrderRepository_ReleasedByDetail(t *testing.T) {
	db := dbtest.New(t)
	users := repository.NewUserRepository(db)
	repo := repository.NewOrderRepository(db)
	ctx := context.Background()

	buyer := seedUser(t, users, "buyer", model.RolePurchasing)
	order := &model.RequestToOrder{
		OrderNo:   "ORD-2026030001",
		Status:    model.OrderApproved,
		CreatedBy: buyer.ID,
		Details: []model.RequestToOrderDetail{
			{Quantity: 10, Unit: "ream", Description: "Bond paper"},
			{Quantity: 3, Unit: "pc", Description: "Toner"},
		},
	}
	require.NoError(t, repo.Create(ctx, order))
	paper, toner := order.Details[0].ID, order.Details[1].ID

	now := time.Now()
	require.NoError(t, repo.CreateReleases(ctx, []model.RequestToOrderRelease{
		{OrderID: order.ID, OrderDetailID: paper, QuantityReleased: 6, ReleaseDate: now, ReleasedBy: buyer.ID},
		{OrderID: order.ID, OrderDetailID: paper, QuantityReleased: 2, ReleaseDate: now, ReleasedBy: buyer.ID},
	}))

	released, err := repo.ReleasedByDetail(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, released[paper])
	assert.Zero(t, released[toner])

	locked, err := repo.LockByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, locked.Details, 2)

	list, err := repo.ListReleases(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRequestRepository_LockDetailsSeesTagsInsideTheTx(t *testing.T) {
	db := dbtest.New(t)
	users := repository.NewUserRepository(db)
	repo := repository.NewRequestRepository(db)
	tx := repository.NewTransactionManager(db)
	ctx := context.Background()

	dept := &model.Department{Name: "Registrar", Code: "REG"}
	require.NoError(t, db.Create(dept).Error)
	staff := seedUser(t, users, "clerk", model.RoleStaff)
	req := &model.Request{
		RequestNo:    "REQ-20260301-0001",
		Status:       model.RequestStatusApproved,
		DepartmentID: dept.ID,
		UserID:       staff.ID,
		Details: []model.RequestDetail{
			{Quantity: 2, Unit: "box", Description: "Folders"},
			{Quantity: 1, Unit: "pc", Description: "Stapler"},
		},
	}
	require.NoError(t, repo.Create(ctx, req))
	ids := []uuid.UUID{req.Details[1].ID, req.Details[0].ID}

	err := tx.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := repo.LockDetails(txCtx, ids)
		require.NoError(t, err)
		require.Len(t, locked, 2)
		assert.Less(t, locked[0].ID.String(), locked[1].ID.String(), "rows are locked in id order")
		for _, d := range locked {
			assert.Nil(t, d.Tagging)
		}

		require.NoError(t, repo.TagDetails(txCtx, ids, model.TaggingForPurchase))
		again, err := repo.LockDetails(txCtx, ids[:1])
		require.NoError(t, err)
		require.Len(t, again, 1)
		require.NotNil(t, again[0].Tagging)
		assert.Equal(t, model.TaggingForPurchase, *again[0].Tagging)
		return nil
	})
	require.NoError(t, err)

	none, err := repo.LockDetails(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCanvasRepository_UpsertApprovalKeepsOneRowPerActor(t *testing.T) {
	db := dbtest.New(t)
	users := repository.NewUserRepository(db)
	repo := repository.NewCanvasRepository(db)
	ctx := context.Background()

	buyer := seedUser(t, users, "buyer", model.RolePurchasing)
	acct := seedUser(t, users, "acct", model.RoleAccounting)
	canvas := &model.Canvas{Title: "Office supplies", Status: model.CanvasSubmitted, CreatedBy: buyer.ID}
	require.NoError(t, repo.Create(ctx, canvas))

	first, err := repo.UpsertApproval(ctx, &model.CanvasApproval{
		CanvasID: canvas.ID, UserID: acct.ID, Role: model.RoleAccounting,
		Approved: true, Comments: "looks fine", ApprovedAt: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	second, err := repo.UpsertApproval(ctx, &model.CanvasApproval{
		CanvasID: canvas.ID, UserID: acct.ID, Role: model.RoleAccounting,
		Approved: false, Comments: "prices changed", ApprovedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.Approved)
	assert.Equal(t, "prices changed", second.Comments)

	latest, err := repo.LatestApprovalPerRole(ctx, canvas.ID)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, model.RoleAccounting, latest[0].Role)
}

func TestCanvasRepository_DeleteIsSoft(t *testing.T) {
	db := dbtest.New(t)
	users := repository.NewUserRepository(db)
	repo := repository.NewCanvasRepository(db)
	ctx := context.Background()

	buyer := seedUser(t, users, "buyer", model.RolePurchasing)
	canvas := &model.Canvas{Title: "Chairs", Status: model.CanvasDraft, CreatedBy: buyer.ID}
	require.NoError(t, repo.Create(ctx, canvas))
	require.NoError(t, repo.Delete(ctx, canvas.ID))

	_, err := repo.FindByID(ctx, canvas.ID)
	assert.True(t, repository.IsNotFound(err))

	var count int64
	require.NoError(t, db.Unscoped().Model(&model.Canvas{}).Where("id = ?", canvas.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIsUniqueViolation(t *testing.T) {
	db := dbtest.New(t)
	repo := repository.NewDepartmentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Department{Name: "Finance", Code: "FIN"}))
	err := repo.Create(ctx, &model.Department{Name: "Finance", Code: "FIN2"})
	require.Error(t, err)
	assert.True(t, repository.IsUniqueViolation(err))
	assert.False(t, repository.IsUniqueViolation(errors.New("other")))
}
