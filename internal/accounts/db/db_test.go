package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"ms-passes/internal/accounts/db"
	"ms-passes/internal/database/migrations"
	"ms-passes/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *db.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	require.NoError(t, migrations.Run(bunDB, nil))
	return &db.DB{Bun: bunDB}
}

func TestCreateAndGetUser(t *testing.T) {
	users := setupTestDB(t)
	ctx := context.Background()

	user := &models.User{Username: "gate1", PasswordHash: "hash", Role: models.RoleWorker}
	require.NoError(t, users.CreateUser(ctx, user))
	assert.NotZero(t, user.ID)

	byName, err := users.GetUserByUsername(ctx, "gate1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)
	assert.Equal(t, models.RoleWorker, byName.Role)

	byID, err := users.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "gate1", byID.Username)

	_, err = users.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	users := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, users.CreateUser(ctx, &models.User{Username: "sponsor", PasswordHash: "a", Role: models.RoleClient}))
	err := users.CreateUser(ctx, &models.User{Username: "sponsor", PasswordHash: "b", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, db.ErrDuplicateUsername)

	count, err := users.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteUser(t *testing.T) {
	users := setupTestDB(t)
	ctx := context.Background()

	user := &models.User{Username: "temp", PasswordHash: "x", Role: models.RoleClient}
	require.NoError(t, users.CreateUser(ctx, user))

	require.NoError(t, users.DeleteUser(ctx, user.ID))
	assert.ErrorIs(t, users.DeleteUser(ctx, user.ID), db.ErrNotFound)

	list, err := users.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
