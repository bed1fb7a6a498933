package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shashiranjanraj/foodie/app/models"
	"github.com/shashiranjanraj/foodie/app/repositories"
	"github.com/shashiranjanraj/foodie/pkg/auth"
	"github.com/shashiranjanraj/foodie/pkg/logger"
	"github.com/shashiranjanraj/foodie/pkg/session"
	"github.com/shashiranjanraj/foodie/pkg/validate"
)

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=2,max=50"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Token is an issued JWT with the moment it stops working.
type Token struct {
	Value   string
	Expires time.Time
	User    *models.User
}

type AuthService struct {
	users *repositories.UserRepository
	ttl   time.Duration
}

func NewAuthService(users *repositories.UserRepository, ttl time.Duration) *AuthService {
	return &AuthService{users: users, ttl: ttl}
}

// Register creates a client account and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Token, error) {
	user, err := s.create(ctx, in, models.RoleClient)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// CreateAdmin creates an admin account. Used by the CLI and the seeder.
func (s *AuthService) CreateAdmin(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.create(ctx, in, models.RoleAdmin)
}

func (s *AuthService) create(ctx context.Context, in RegisterInput, role string) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if errs := validate.Struct(in); len(errs) > 0 {
		return nil, &ValidationError{Message: "Validation failed", Fields: errs}
	}

	_, err := s.users.FindByEmail(ctx, in.Email)
	if err == nil {
		return nil, &StatusError{Kind: ErrConflict, Message: "User already exists"}
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Username: in.Username, Email: in.Email, Password: hash, Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.WithCtx(ctx).Info("user registered", "user_id", user.ID, "role", role)
	return user, nil
}

// Login checks the credentials and issues a token. Unknown email and wrong
// password give the same error.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Token, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if errs := validate.Struct(in); len(errs) > 0 {
		return nil, &ValidationError{Message: "Validation failed", Fields: errs}
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, &StatusError{Kind: ErrUnauthenticated, Message: "Invalid credentials"}
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(user.Password, in.Password) {
		return nil, &StatusError{Kind: ErrUnauthenticated, Message: "Invalid credentials"}
	}
	if auth.NeedsRehash(user.Password) {
		s.rehash(ctx, user, in.Password)
	}
	return s.issue(user)
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, id session.Identity) error {
	ttl := time.Until(id.Expires)
	if id.Expires.IsZero() {
		ttl = s.ttl
	}
	return session.Revoke(ctx, id.TokenID, ttl)
}

// rehash moves a hash to the current bcrypt cost. Failing only delays the
// upgrade to the next login.
func (s *AuthService) rehash(ctx context.Context, user *models.User, plain string) {
	hash, err := auth.HashPassword(plain)
	if err == nil {
		user.Password = hash
		err = s.users.Update(ctx, user)
	}
	if err != nil {
		logger.WithCtx(ctx).Warn("auth: password rehash failed", "user_id", user.ID, "error", err)
	}
}

func (s *AuthService) issue(user *models.User) (*Token, error) {
	signed, claims, err := auth.IssueToken(user.ID, user.Email, user.Role, s.ttl)
	if err != nil {
		return nil, err
	}
	return &Token{Value: signed, Expires: claims.ExpiresAt.Time, User: user}, nil
}
