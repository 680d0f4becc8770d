// Package repo holds the GORM plumbing shared by domain repositories.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// Scope narrows a query. pagination.Keyset and plain closures both fit.
type Scope = func(*gorm.DB) *gorm.DB

// Table is a typed handle on the rows of one model.
type Table[T any] struct {
	db *gorm.DB
}

func NewTable[T any](db *gorm.DB) Table[T] {
	return Table[T]{db: db}
}

// Conn returns tx when the caller already holds a transaction and otherwise
// the pooled connection bound to ctx.
func (t Table[T]) Conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return t.db.WithContext(ctx)
}

// Take loads exactly one row matching scopes. gorm.ErrRecordNotFound is
// returned unchanged so callers can map it.
func (t Table[T]) Take(ctx context.Context, tx *gorm.DB, scopes ...Scope) (T, error) {
	var row T
	err := t.Conn(ctx, tx).Scopes(scopes...).Take(&row).Error
	return row, err
}

func (t Table[T]) Find(ctx context.Context, tx *gorm.DB, scopes ...Scope) ([]T, error) {
	var rows []T
	if err := t.Conn(ctx, tx).Model(new(T)).Scopes(scopes...).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (t Table[T]) Insert(ctx context.Context, tx *gorm.DB, row *T) error {
	return t.Conn(ctx, tx).Create(row).Error
}
