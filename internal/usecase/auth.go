package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/azizikri/storefront/internal/auth"
	"github.com/azizikri/storefront/internal/domain"
	"github.com/azizikri/storefront/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type AuthService struct {
	store  repository.Store
	issuer *auth.Issuer
}

func NewAuthService(store repository.Store, issuer *auth.Issuer) *AuthService {
	return &AuthService{store: store, issuer: issuer}
}

type RegisterInput struct {
	Phone    string
	Password string
	Username *string
	Email    *string
}

type Session struct {
	User *domain.User `json:"user"`
	auth.TokenPair
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, repository.CreateUserParams{
		Phone:        in.Phone,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Nickname:     defaultNickname(in.Phone),
		Role:         domain.RoleUser,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Errorf(domain.ErrConflict, "phone, username or email is already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	zerolog.Ctx(ctx).Info().Int64("user_id", user.ID).Msg("user registered")
	return s.session(&user)
}

func defaultNickname(phone string) string {
	if len(phone) > 4 {
		phone = phone[len(phone)-4:]
	}
	return "User" + phone
}

// Login accepts a username, email or phone number as the account.
func (s *AuthService) Login(ctx context.Context, account, password string) (*Session, error) {
	user, err := s.store.GetUserByAccount(ctx, account)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.Errorf(domain.ErrUnauthenticated, "invalid account or password")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user.Status == domain.UserBanned {
		return nil, domain.Errorf(domain.ErrForbidden, "account is banned")
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, domain.Errorf(domain.ErrUnauthenticated, "invalid account or password")
	}
	return s.session(&user)
}

// Refresh trades a refresh token for a new pair. The role is re-read from
// the database so demotions take effect.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	id, err := s.issuer.Verify(refreshToken, auth.RefreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.Errorf(domain.ErrUnauthenticated, "user no longer exists")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user.Status == domain.UserBanned {
		return nil, domain.Errorf(domain.ErrForbidden, "account is banned")
	}
	return s.session(&user)
}

func (s *AuthService) Me(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (s *AuthService) session(user *domain.User) (*Session, error) {
	pair, err := s.issuer.Issue(auth.Identity{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, err
	}
	return &Session{User: user, TokenPair: pair}, nil
}
