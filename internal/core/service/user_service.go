package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
	"github.com/natours/booking-api/internal/core/query"
)

// UserService implements ports.UserService.
type UserService struct {
	users    ports.UserRepository
	accounts *AuthService
	log      zerolog.Logger
}

func NewUserService(users ports.UserRepository, accounts *AuthService, log zerolog.Logger) *UserService {
	return &UserService{users: users, accounts: accounts, log: log}
}

// CreatePrincipal lets an administrator create an account with any role.
func (s *UserService) CreatePrincipal(ctx context.Context, in ports.SignupInput) (*domain.User, error) {
	return s.accounts.createPrincipal(ctx, in)
}

func (s *UserService) List(ctx context.Context, q query.Descriptor) ([]*domain.User, error) {
	records, err := s.users.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	return query.Collect(records)
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *UserService) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	if err := normalizeUserPatch(&patch); err != nil {
		return nil, err
	}
	return s.users.Update(ctx, id, patch)
}

// UpdateMe changes the caller's own profile. Role changes are not allowed
// here.
func (s *UserService) UpdateMe(ctx context.Context, me *domain.User, patch domain.UserPatch) (*domain.User, error) {
	patch.Role = nil
	if err := normalizeUserPatch(&patch); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return me, nil
	}
	return s.users.Update(ctx, me.ID.Hex(), patch)
}

// DeleteMe deactivates the caller's account. The document is kept.
func (s *UserService) DeleteMe(ctx context.Context, me *domain.User) error {
	if err := s.users.Deactivate(ctx, me.ID.Hex()); err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	s.log.Info().Str("user_id", me.ID.Hex()).Msg("user deactivated")
	return nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	return s.users.Delete(ctx, id)
}

func normalizeUserPatch(p *domain.UserPatch) error {
	if p.Role != nil && !p.Role.Valid() {
		return domain.NewError(http.StatusBadRequest, fmt.Sprintf("Invalid role: %s", *p.Role))
	}
	if p.Email != nil {
		e := normalizeEmail(*p.Email)
		p.Email = &e
	}
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		if err := validateUserName(n); err != nil {
			return err
		}
		p.Name = &n
	}
	return nil
}

func validateUserName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < domain.MinNameLength || n > domain.MaxNameLength {
		return domain.NewError(http.StatusBadRequest, fmt.Sprintf(
			"A user name must have between %d and %d characters", domain.MinNameLength, domain.MaxNameLength))
	}
	return nil
}
