package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketplace/internal/app/apperr"
	"marketplace/internal/app/dto"
	"marketplace/internal/app/validation"
	domainuser "marketplace/internal/domain/user"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserInactive       = errors.New("auth: user inactive")
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenIssuer signs bearer tokens and resolves them back to a user id.
type TokenIssuer interface {
	Issue(userID, role string) (string, time.Time, error)
	Subject(token string) (string, error)
}

type Service struct {
	Users     domainuser.Repository
	Passwords PasswordHasher
	Tokens    TokenIssuer
	Logger    *slog.Logger
	Now       func() time.Time
}

type RegisterParams struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	FirstName string `json:"first_name" validate:"notblank,max=100"`
	LastName  string `json:"last_name" validate:"notblank,max=100"`
	Avatar    string `json:"avatar" validate:"omitempty,url"`
	Password  string `json:"password" validate:"min=8,max=72"`
	Role      string `json:"role" validate:"role"`
}

type LoginParams struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Service) Register(ctx context.Context, params RegisterParams) (dto.AuthResponse, error) {
	if err := s.ensureDependencies(); err != nil {
		return dto.AuthResponse{}, apperr.Internal(err)
	}
	if err := validation.Struct(params); err != nil {
		return dto.AuthResponse{}, err
	}
	hash, err := s.Passwords.Hash(params.Password)
	if err != nil {
		return dto.AuthResponse{}, apperr.Internal(err)
	}
	user, err := domainuser.NewUser(domainuser.CreateParams{
		ID:           domainuser.ID(uuid.NewString()),
		Email:        params.Email,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Avatar:       params.Avatar,
		PasswordHash: hash,
		Role:         domainuser.Role(params.Role),
		CreatedAt:    s.now(),
	})
	if err != nil {
		return dto.AuthResponse{}, translate(err)
	}
	if existing, err := s.Users.ByEmail(ctx, user.Email); err == nil && existing != nil {
		return dto.AuthResponse{}, apperr.Conflict("email already registered", domainuser.ErrEmailAlreadyUsed)
	} else if err != nil && !errors.Is(err, domainuser.ErrNotFound) {
		return dto.AuthResponse{}, apperr.Internal(err)
	}
	if err := s.Users.Save(ctx, user); err != nil {
		return dto.AuthResponse{}, translate(err)
	}
	resp, err := s.issue(user)
	if err != nil {
		return dto.AuthResponse{}, err
	}
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	}
	return resp, nil
}

func (s *Service) Login(ctx context.Context, params LoginParams) (dto.AuthResponse, error) {
	if err := s.ensureDependencies(); err != nil {
		return dto.AuthResponse{}, apperr.Internal(err)
	}
	if err := validation.Struct(params); err != nil {
		return dto.AuthResponse{}, err
	}
	user, err := s.Users.ByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			return dto.AuthResponse{}, apperr.Unauthenticated("invalid email or password", ErrInvalidCredentials)
		}
		return dto.AuthResponse{}, apperr.Internal(err)
	}
	if err := s.Passwords.Compare(user.PasswordHash, params.Password); err != nil {
		return dto.AuthResponse{}, apperr.Unauthenticated("invalid email or password", ErrInvalidCredentials)
	}
	if !user.IsActive {
		return dto.AuthResponse{}, apperr.Forbidden("account is deactivated", ErrUserInactive)
	}
	resp, err := s.issue(user)
	if err != nil {
		return dto.AuthResponse{}, err
	}
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "user authenticated", "user_id", user.ID)
	}
	return resp, nil
}

// ResolveToken returns the active user a bearer token was issued to.
func (s *Service) ResolveToken(ctx context.Context, token string) (*domainuser.User, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, apperr.Internal(err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.Unauthenticated("token required", nil)
	}
	userID, err := s.Tokens.Subject(token)
	if err != nil {
		return nil, apperr.Unauthenticated("invalid token", err)
	}
	user, err := s.Users.ByID(ctx, domainuser.ID(userID))
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			return nil, apperr.Unauthenticated("invalid token", err)
		}
		return nil, apperr.Internal(err)
	}
	if !user.IsActive {
		return nil, apperr.Unauthenticated("account is deactivated", ErrUserInactive)
	}
	return user, nil
}

func (s *Service) Profile(ctx context.Context, userID string) (dto.UserProfile, error) {
	user, err := s.Users.ByID(ctx, domainuser.ID(userID))
	if err != nil {
		return dto.UserProfile{}, translate(err)
	}
	return dto.MapUserProfile(user), nil
}

func (s *Service) issue(user *domainuser.User) (dto.AuthResponse, error) {
	token, exp, err := s.Tokens.Issue(string(user.ID), string(user.Role))
	if err != nil {
		return dto.AuthResponse{}, apperr.Internal(err)
	}
	return dto.NewAuthResponse(user, token, exp), nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ensureDependencies() error {
	switch {
	case s.Users == nil:
		return errors.New("auth: user repository required")
	case s.Passwords == nil:
		return errors.New("auth: password hasher required")
	case s.Tokens == nil:
		return errors.New("auth: token issuer required")
	default:
		return nil
	}
}

func translate(err error) error {
	switch {
	case errors.Is(err, domainuser.ErrNotFound):
		return apperr.NotFound("user", err)
	case errors.Is(err, domainuser.ErrEmailAlreadyUsed):
		return apperr.Conflict("email already registered", err)
	case errors.Is(err, domainuser.ErrEmailRequired):
		return apperr.Field("email", "required", err)
	case errors.Is(err, domainuser.ErrNameRequired):
		return apperr.Field("first_name", "required", err)
	case errors.Is(err, domainuser.ErrInvalidRole):
		return apperr.Field("role", "role", err)
	default:
		return apperr.From(err)
	}
}
