// Package gormsource adapts a GORM model to the collcache backing Source, so
// a relational table can sit behind a per-key cache without hand-written
// fetch plumbing.
package gormsource

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Source loads rows of model T keyed by the column named in primaryKey.
// It satisfies collcache.Source[K, *T].
type Source[T any, K comparable] struct {
	db         *gorm.DB
	primaryKey string
	keyOf      func(*T) K // extracts the key from a loaded row
}

func New[T any, K comparable](db *gorm.DB, primaryKey string, keyOf func(*T) K) (*Source[T, K], error) {
	if db == nil {
		return nil, errors.New("gormsource: nil db")
	}
	if primaryKey == "" {
		return nil, errors.New("gormsource: primary key column is required")
	}
	if keyOf == nil {
		return nil, errors.New("gormsource: keyOf is required")
	}
	return &Source[T, K]{db: db, primaryKey: primaryKey, keyOf: keyOf}, nil
}

func (s *Source[T, K]) FetchOne(ctx context.Context, key K) (*T, bool, error) {
	var row T
	err := s.db.WithContext(ctx).
		Where(fmt.Sprintf("%s = ?", s.primaryKey), key).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &row, true, nil
}

func (s *Source[T, K]) FetchMany(ctx context.Context, keys []K) (map[K]*T, error) {
	out := make(map[K]*T, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var rows []T
	err := s.db.WithContext(ctx).
		Where(fmt.Sprintf("%s IN ?", s.primaryKey), keys).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		out[s.keyOf(&rows[i])] = &rows[i]
	}
	return out, nil
}

func (s *Source[T, K]) FetchAll(ctx context.Context) (map[K]*T, error) {
	var rows []T
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[K]*T, len(rows))
	for i := range rows {
		out[s.keyOf(&rows[i])] = &rows[i]
	}
	return out, nil
}
