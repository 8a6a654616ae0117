// Package dao defines a generic keyed storage contract and its sentinel
// errors; store provides the in-memory implementation.
package dao

import (
	"context"
)

// Service stores entities of type T by key K
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
