// Package knowledgebase persists context items behind the background
// coordinator. Items are listed in creation order.
package knowledgebase

import (
	"context"
	"errors"
	"strings"

	"github.com/entrhq/autoact/pkg/types"
)

// ErrNotFound is returned when no item has the requested ID.
var ErrNotFound = errors.New("context not found")

// Store is the knowledge-base persistence contract.
type Store interface {
	// List returns every item in creation order.
	List(ctx context.Context) ([]types.ContextItem, error)

	// Get returns the item with the given ID.
	Get(ctx context.Context, id string) (types.ContextItem, error)

	// Add validates and stores a new item, assigning its ID.
	Add(ctx context.Context, values types.ContextFormValues) (types.ContextItem, error)

	// Update validates and replaces the title and description of an existing item.
	Update(ctx context.Context, item types.ContextItem) (types.ContextItem, error)

	// Close releases the store's resources.
	Close() error
}

// normalize trims the stored fields and validates them.
func normalize(values types.ContextFormValues) (types.ContextFormValues, error) {
	values.Title = strings.TrimSpace(values.Title)
	values.Description = strings.TrimSpace(values.Description)
	if err := values.Validate(); err != nil {
		return values, err
	}
	return values, nil
}
