package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seoulsafe/sinkhole-api/auth"
	apperrors "github.com/seoulsafe/sinkhole-api/errors"
)

// RegisterInput is the registration request body.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Password string `json:"password" validate:"required,password"`
}

// Service implements register, login and current-user lookup.
type Service struct {
	store Store
	jwt   *auth.JWTManager
	now   func() time.Time
	// dummyHash keeps login timing similar for unknown emails.
	dummyHash string
}

var hashPassword = auth.HashPassword

// NewService creates an account service. It panics if the dummy login hash
// cannot be built.
func NewService(store Store, jwt *auth.JWTManager) *Service {
	dummy, err := hashPassword("not-a-real-password")
	if err != nil {
		panic(fmt.Sprintf("account: build dummy hash: %v", err))
	}
	return &Service{
		store:     store,
		jwt:       jwt,
		now:       time.Now,
		dummyHash: dummy,
	}
}

// Register creates an active account. A taken email is a Conflict error.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to hash password")
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, apperrors.Conflict("Email already registered")
		}
		return nil, apperrors.InternalWrap(err, "failed to register user")
	}
	return user, nil
}

// Authenticate checks credentials and issues a bearer token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Token, *User, error) {
	user, err := s.store.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, nil, apperrors.InternalWrap(err, "failed to load user")
	}

	hash := s.dummyHash
	if user != nil {
		hash = user.PasswordHash
	}
	ok, err := auth.CheckPassword(hash, password)
	if err != nil {
		return nil, nil, apperrors.InternalWrap(err, "failed to verify password")
	}
	if user == nil || !ok {
		return nil, nil, apperrors.Unauthorized("Incorrect username or password")
	}
	if !user.IsActive {
		return nil, user, apperrors.Forbidden("Inactive user")
	}

	access, err := s.jwt.GenerateAccessToken(user.ID, user.Email, user.Name)
	if err != nil {
		return nil, user, apperrors.InternalWrap(err, "failed to issue token")
	}
	return &Token{
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   int(s.jwt.AccessExpiry().Seconds()),
	}, user, nil
}

// CurrentUser resolves the account behind validated token claims.
func (s *Service) CurrentUser(ctx context.Context, claims *auth.Claims) (*User, error) {
	if claims == nil || claims.Email() == "" {
		return nil, apperrors.Unauthorized("Could not validate credentials")
	}
	user, err := s.store.GetByEmail(ctx, claims.Email())
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperrors.Unauthorized("Could not validate credentials")
	}
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to load user")
	}
	if !user.IsActive {
		return nil, apperrors.Forbidden("Inactive user")
	}
	return user, nil
}
