package service

import (
	"context"
	"strings"

	"emojifeed/internal/identity"
	"emojifeed/internal/models"
)

type ProfileService struct {
	directory identity.Directory
}

func NewProfileService(directory identity.Directory) *ProfileService {
	return &ProfileService{directory: directory}
}

// GetUserByUsername returns the public profile for username, or NotFound.
func (s *ProfileService) GetUserByUsername(ctx context.Context, username string) (*models.AuthorProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, models.NewFieldValidationError("username", "Username is required")
	}
	return s.directory.ResolveByUsername(ctx, username)
}
