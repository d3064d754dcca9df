package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
)

var ErrNotFound = errors.New("record not found")

// DB is the pass store. Every method runs on the transaction carried by ctx when
// there is one (see InTx) and on the pool otherwise.
type DB struct {
	Bun *bun.DB
}

type txKey struct{}

func (d *DB) conn(ctx context.Context) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return d.Bun
}

// InTx runs fn in a transaction that commits when fn returns nil and rolls back
// otherwise, including on panic. Nested calls join the outer transaction.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return fn(ctx)
	}
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
