package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/toolroom-erp/toolroom/internal/inventory"
	"github.com/toolroom-erp/toolroom/internal/procurement"
	"github.com/toolroom-erp/toolroom/internal/shared"
)

var t0 = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

func TestMemoryTxCommitsAtomically(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(ctx context.Context, tx procurement.TxRepository) error {
		require.NoError(t, tx.PutProject(ctx, procurement.Project{ID: "p1", Status: procurement.ProjectActive, CreatedAt: t0}))
		got, err := tx.GetProject(ctx, "p1")
		require.NoError(t, err)
		require.Equal(t, "p1", got.ID)
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, err = m.GetProject(ctx, "p1")
	require.ErrorIs(t, err, shared.ErrNotFound)

	err = m.WithTx(ctx, func(ctx context.Context, tx procurement.TxRepository) error {
		return tx.PutProject(ctx, procurement.Project{ID: "p1", Status: procurement.ProjectActive, CreatedAt: t0})
	})
	require.NoError(t, err)
	list, err := m.ListProjects(ctx, procurement.ProjectFilter{Status: procurement.ProjectActive})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestMemoryReturnsIsolatedCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	pr := procurement.PR{ID: "pr1", Status: procurement.PRSubmitted, Items: []procurement.PRItem{{ID: "i1", Name: "Punch", Quantity: 2}}, CreatedAt: t0}
	require.NoError(t, m.PutPR(ctx, pr))

	got, err := m.GetPR(ctx, "pr1")
	require.NoError(t, err)
	got.Items[0].Name = "changed"

	again, err := m.GetPR(ctx, "pr1")
	require.NoError(t, err)
	require.Equal(t, "Punch", again.Items[0].Name)
}

func TestPutPRGuardsInvariants(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.PutPR(ctx, procurement.PR{ID: "pr1", Status: procurement.PRApproved, AwardedSupplier: "s1"})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	err = m.PutPR(ctx, procurement.PR{ID: "pr2", Status: procurement.PRSubmitted, Allocations: []procurement.CriticalSpareAllocation{{ItemID: "ghost", Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestInventoryPortSharesTransactions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	inv := m.Inventory()

	item := inventory.Item{ID: "it1", PartNumber: "P", ToolNumber: "T", Name: "Pin", Quantity: 3, StockLevel: 3, MinStockLevel: 5, CreatedAt: t0}
	err := inv.WithTx(ctx, func(ctx context.Context, tx inventory.TxRepository) error {
		return tx.PutItem(ctx, item)
	})
	require.NoError(t, err)

	found, ok, err := m.FindItem(ctx, inventory.Key{PartNumber: "P", ToolNumber: "T", Name: "Pin"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, inventory.StatusLowStock, found.Status())

	_, ok, err = inv.FindItem(ctx, inventory.Key{PartNumber: "P", ToolNumber: "T", Name: "Other"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListOrdersByCreation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.PutRequest(ctx, inventory.SparesRequest{ID: "b", Requester: "u1", Status: inventory.RequestPending, CreatedAt: t0}))
	require.NoError(t, m.PutRequest(ctx, inventory.SparesRequest{ID: "a", Requester: "u1", Status: inventory.RequestPending, CreatedAt: t0.Add(time.Minute)}))
	require.NoError(t, m.PutRequest(ctx, inventory.SparesRequest{ID: "c", Requester: "u2", Status: inventory.RequestRejected, CreatedAt: t0}))

	got, err := m.ListRequests(ctx, inventory.RequestFilter{Requester: "u1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "b", got[0].ID)
	require.Equal(t, "a", got[1].ID)
}

func TestTranslateSerializationFailure(t *testing.T) {
	err := translate(&pgconn.PgError{Code: "40001"})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	plain := errors.New("other")
	require.Equal(t, plain, translate(plain))
}
