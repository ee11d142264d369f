package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
)

const (
	passwordCost      = 12
	minPasswordLen    = 8
	resetTokenBytes   = 32
	resetTokenTTL     = 10 * time.Minute
	resetEmailSubject = "Your password reset token (valid for 10 min)"
)

// AuthService implements ports.AuthService.
type AuthService struct {
	users  ports.UserRepository
	mailer ports.Mailer
	tokens *TokenManager
	log    zerolog.Logger
	cost   int
	now    func() time.Time
}

func NewAuthService(users ports.UserRepository, mailer ports.Mailer, tokens *TokenManager, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		mailer: mailer,
		tokens: tokens,
		log:    log,
		cost:   passwordCost,
		now:    time.Now,
	}
}

// Signup creates a regular user. Any requested role is ignored.
func (s *AuthService) Signup(ctx context.Context, in ports.SignupInput) (*domain.User, error) {
	in.Role = domain.RoleUser
	return s.createPrincipal(ctx, in)
}

// createPrincipal hashes the password and stores a new active user.
func (s *AuthService) createPrincipal(ctx context.Context, in ports.SignupInput) (*domain.User, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" {
		return nil, domain.NewError(http.StatusBadRequest, "Please provide name and email")
	}
	if err := validateUserName(in.Name); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	if !in.Role.Valid() {
		return nil, domain.NewError(http.StatusBadRequest, fmt.Sprintf("Invalid role: %s", in.Role))
	}
	hash, err := s.hashPassword(in.Password, in.PasswordConfirm)
	if err != nil {
		return nil, err
	}

	photo := in.Photo
	if photo == "" {
		photo = domain.DefaultPhoto
	}
	user := &domain.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        normalizeEmail(in.Email),
		Photo:        photo,
		Role:         in.Role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", created.ID.Hex()).Str("role", string(created.Role)).Msg("user created")
	return created, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	if email == "" || password == "" {
		return nil, domain.NewError(http.StatusBadRequest, "Please provide email and password!")
	}

	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.ErrBadLogin
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrBadLogin
	}
	return user, nil
}

// ForgotPassword stores a hashed one-time token and mails the raw token.
// When the mail cannot be sent the token is removed again, so a retry starts
// from a clean state and no undelivered token stays usable.
func (s *AuthService) ForgotPassword(ctx context.Context, in ports.ForgotPasswordInput) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.NewError(http.StatusNotFound, "There is no user with that email address.")
		}
		return err
	}

	token, tokenHash, err := newResetToken()
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	id := user.ID.Hex()
	if err := s.users.SetPasswordReset(ctx, id, tokenHash, s.now().Add(resetTokenTTL)); err != nil {
		return fmt.Errorf("forgot password: store token: %w", err)
	}

	resetURL := strings.TrimRight(in.ResetURL, "/") + "/" + token
	msg := domain.Email{
		To:      user.Email,
		Subject: resetEmailSubject,
		HTML: fmt.Sprintf(`<p>Forgot your password?<br>Submit a PATCH request with your new password and passwordConfirm to: <a href="%s">%s</a>.<br>`+
			`If you didn't forget your password, please ignore this email.</p>`, resetURL, resetURL),
		Text: fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s.\n"+
			"If you didn't forget your password, please ignore this email.", resetURL),
	}
	if sendErr := s.mailer.Send(ctx, msg); sendErr != nil {
		if err := s.users.ClearPasswordReset(ctx, id); err != nil {
			s.log.Error().Err(err).Str("user_id", id).Msg("failed to roll back reset token")
		}
		s.log.Error().Err(sendErr).Str("user_id", id).Msg("reset email not sent")
		return domain.Wrap(http.StatusInternalServerError, "There was an error sending the email. Try again later!", sendErr)
	}

	s.log.Info().Str("user_id", id).Msg("reset token sent")
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token string, in ports.ChangePasswordInput) (*domain.User, error) {
	user, err := s.users.FindByResetToken(ctx, hashToken(token), s.now())
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewError(http.StatusBadRequest, "Token is invalid or has expired")
		}
		return nil, err
	}
	if err := s.changePassword(ctx, user, in); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) UpdatePassword(ctx context.Context, userID string, in ports.ChangePasswordInput) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Current)) != nil {
		return nil, domain.NewError(http.StatusUnauthorized, "Your current password is wrong.")
	}
	if err := s.changePassword(ctx, user, in); err != nil {
		return nil, err
	}
	return user, nil
}

// changePassword stores a new hash and moves the credential-version marker.
// The marker is backdated by a second so that a credential issued right
// after the change is still newer than it.
func (s *AuthService) changePassword(ctx context.Context, user *domain.User, in ports.ChangePasswordInput) error {
	hash, err := s.hashPassword(in.Password, in.PasswordConfirm)
	if err != nil {
		return err
	}
	changedAt := s.now().Add(-time.Second).UTC()
	if err := s.users.SetPassword(ctx, user.ID.Hex(), hash, changedAt); err != nil {
		return err
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt
	user.PasswordResetToken = ""
	user.PasswordResetExpires = nil
	s.log.Info().Str("user_id", user.ID.Hex()).Msg("password changed")
	return nil
}

func (s *AuthService) IssueToken(user *domain.User) (ports.IssuedToken, error) {
	return s.tokens.Issue(user.ID.Hex())
}

// Authenticate runs the verification, resolution and staleness steps of the
// auth gate.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*domain.User, error) {
	if raw == "" {
		return nil, domain.ErrNotLoggedIn
	}
	id, issuedAt, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		var cast *domain.CastError
		if domain.IsNotFound(err) || errors.As(err, &cast) {
			return nil, domain.ErrPrincipalGone
		}
		return nil, err
	}
	if user.ChangedPasswordAfter(issuedAt) {
		return nil, domain.ErrStaleCredential
	}
	return user, nil
}

func (s *AuthService) hashPassword(password, confirm string) (string, error) {
	if len(password) < minPasswordLen {
		return "", domain.NewError(http.StatusBadRequest, fmt.Sprintf("Password must have at least %d characters", minPasswordLen))
	}
	if password != confirm {
		return "", domain.NewError(http.StatusBadRequest, "Passwords are not the same!")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func newResetToken() (token, tokenHash string, err error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(b)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
