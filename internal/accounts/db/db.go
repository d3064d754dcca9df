package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-passes/internal/models"

	"github.com/uptrace/bun"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
)

type DB struct {
	Bun *bun.DB
}

// CreateUser inserts the user and fills in its ID. A taken username yields ErrDuplicateUsername.
func (d *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	res, err := d.Bun.NewInsert().
		Model(user).
		On("CONFLICT (username) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert user %s: %w", user.Username, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDuplicateUsername
	}

	stored, err := d.GetUserByUsername(ctx, user.Username)
	if err != nil {
		return err
	}
	user.ID = stored.ID
	return nil
}

func (d *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("username = ?", username).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0)
	err := d.Bun.NewSelect().
		Model(&users).
		Order("id ASC").
		Scan(ctx)
	return users, err
}

func (d *DB) CountUsers(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().Model((*models.User)(nil)).Count(ctx)
}

func (d *DB) DeleteUser(ctx context.Context, id int64) error {
	res, err := d.Bun.NewDelete().
		Model((*models.User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
