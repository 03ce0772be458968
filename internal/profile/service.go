package profile

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/ariefcatur/go-storefront.git/internal/catalog"
	"github.com/ariefcatur/go-storefront.git/internal/identity"
	"go.uber.org/zap"
)

type Service struct {
	Store Store
	Log   *zap.Logger
}

func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Store: store, Log: log}
}

// Get returns the stored profile, or one built from the token when the user
// never saved a row.
func (s *Service) Get(ctx context.Context, u identity.User) (Profile, error) {
	p, err := s.Store.Get(ctx, u.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		p = Profile{UserID: u.ID, Email: u.Email}
	case err != nil:
		s.Log.Warn("profile read failed", zap.String("user_id", u.ID), zap.Error(err))
		return Profile{}, catalog.Unavailable(err)
	}
	if p.Email == "" {
		p.Email = u.Email
	}
	p.DisplayName = DisplayName(p.FullName, p.Email)
	return p, nil
}

// UpdateName saves fullName, creating the row on first use.
func (s *Service) UpdateName(ctx context.Context, u identity.User, fullName string) (Profile, error) {
	name := strings.TrimSpace(fullName)
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return Profile{}, ErrInvalidName
	}
	p, err := s.Store.Upsert(ctx, Profile{UserID: u.ID, Email: u.Email, FullName: name})
	if err != nil {
		s.Log.Error("profile write failed", zap.String("user_id", u.ID), zap.Error(err))
		return Profile{}, catalog.Unavailable(err)
	}
	p.DisplayName = DisplayName(p.FullName, p.Email)
	s.Log.Info("profile updated", zap.String("user_id", u.ID))
	return p, nil
}
