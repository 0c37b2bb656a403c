package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"testing"

	auth "github.com/KyungBin7/waitrush-sub000"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err = auth.Migrate(context.Background(), db, logger)
	require.NoError(t, err)
	return db
}

func TestWaitlistRepository_OwnerCascade(t *testing.T) {
	ctx := context.Background()
	repo := NewWaitlistRepository(setupDB(t))

	owner := uuid.NewString()
	other := uuid.NewString()

	first, err := repo.CreateService(ctx, owner, " Beta ", "beta")
	require.NoError(t, err)
	assert.Equal(t, "Beta", first.Name)

	second, err := repo.CreateService(ctx, owner, "Gamma", "gamma")
	require.NoError(t, err)

	kept, err := repo.CreateService(ctx, other, "Other", "other")
	require.NoError(t, err)

	for _, email := range []string{"A@example.com", "b@example.com"} {
		_, err := repo.AddParticipant(ctx, first.ID, email)
		require.NoError(t, err)
	}
	_, err = repo.AddParticipant(ctx, second.ID, "c@example.com")
	require.NoError(t, err)
	_, err = repo.AddParticipant(ctx, kept.ID, "d@example.com")
	require.NoError(t, err)

	count, err := repo.CountParticipants(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	ids, err := repo.ListServicesByOwner(ctx, owner)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	removed, err := repo.DeleteParticipantsByServiceIDs(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	services, err := repo.DeleteServicesByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, services)

	ids, err = repo.ListServicesByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, ids)

	count, err = repo.CountParticipants(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWaitlistRepository_Empty(t *testing.T) {
	ctx := context.Background()
	repo := NewWaitlistRepository(setupDB(t))

	ids, err := repo.ListServicesByOwner(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, ids)

	removed, err := repo.DeleteParticipantsByServiceIDs(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, removed)

	services, err := repo.DeleteServicesByOwner(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Zero(t, services)
}

func TestWaitlistRepository_DuplicateSlug(t *testing.T) {
	ctx := context.Background()
	repo := NewWaitlistRepository(setupDB(t))

	_, err := repo.CreateService(ctx, uuid.NewString(), "One", "launch")
	require.NoError(t, err)

	_, err = repo.CreateService(ctx, uuid.NewString(), "Two", "launch")
	assert.Error(t, err)
}

func TestManager(t *testing.T) {
	db := setupDB(t)
	mgr := NewRepositoryManager(db)

	require.NoError(t, mgr.Validate())
	assert.NotPanics(t, mgr.MustValidate)
	assert.NotNil(t, mgr.Organizers())
	assert.Same(t, mgr.Waitlist(), mgr.OwnedData())

	ctx := context.Background()
	err := mgr.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := NewWaitlistRepository(tx).CreateService(ctx, uuid.NewString(), "Tx", "tx")
		return err
	})
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = mgr.RunInTx(cancelled, nil, func(context.Context, bun.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
