// Package identity resolves user ids and usernames to public author profiles
// held by the external identity directory.
package identity

import (
	"context"

	"emojifeed/internal/models"
)

// MaxBatchSize is the most ids the directory accepts in one lookup.
const MaxBatchSize = 100

// Directory looks up author profiles.
type Directory interface {
	// ResolveByIDs returns the profiles found for ids keyed by user id.
	// Unknown ids are absent from the map; that is not an error.
	ResolveByIDs(ctx context.Context, ids []string) (map[string]models.AuthorProfile, error)
	// ResolveByUsername returns a NotFound AppError when no user has the username.
	ResolveByUsername(ctx context.Context, username string) (*models.AuthorProfile, error)
	// Ping reports whether the directory is reachable.
	Ping(ctx context.Context) error
}

func errUserNotFound() error {
	return models.NewNotFoundError("User not found")
}
