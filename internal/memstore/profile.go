package memstore

import (
	"context"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/profile"
)

// ProfileStore is the profile.Store view of a Store.
type ProfileStore struct{ s *Store }

func (s *Store) ProfileStore() ProfileStore { return ProfileStore{s: s} }

func (v ProfileStore) Get(ctx context.Context, userID string) (profile.Profile, error) {
	if err := v.s.lock(); err != nil {
		return profile.Profile{}, err
	}
	defer v.s.mu.Unlock()
	p, ok := v.s.profiles[userID]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	return p, nil
}

func (v ProfileStore) Upsert(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if err := v.s.lock(); err != nil {
		return profile.Profile{}, err
	}
	defer v.s.mu.Unlock()
	cur, ok := v.s.profiles[p.UserID]
	if ok && p.Email == "" {
		p.Email = cur.Email
	}
	now := time.Now().UTC()
	p.UpdatedAt = &now
	p.DisplayName = ""
	v.s.profiles[p.UserID] = p
	return p, nil
}
