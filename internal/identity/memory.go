package identity

import (
	"context"
	"strings"
	"sync"

	"emojifeed/internal/models"
)

// MemoryDirectory is an in-process Directory used in development and tests.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]models.AuthorProfile
}

func NewMemoryDirectory(profiles ...models.AuthorProfile) *MemoryDirectory {
	d := &MemoryDirectory{users: make(map[string]models.AuthorProfile)}
	for _, p := range profiles {
		d.Add(p)
	}
	return d
}

// Add registers or replaces a profile.
func (d *MemoryDirectory) Add(p models.AuthorProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[p.UserID] = p
}

// Remove forgets a profile, as if the user were deleted upstream.
func (d *MemoryDirectory) Remove(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, userID)
}

func (d *MemoryDirectory) ResolveByIDs(_ context.Context, ids []string) (map[string]models.AuthorProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]models.AuthorProfile, len(ids))
	for _, id := range ids {
		if p, ok := d.users[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (d *MemoryDirectory) ResolveByUsername(_ context.Context, username string) (*models.AuthorProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, p := range d.users {
		if p.Username != "" && strings.EqualFold(p.Username, username) {
			found := p
			return &found, nil
		}
	}
	return nil, errUserNotFound()
}

func (d *MemoryDirectory) Ping(context.Context) error { return nil }
