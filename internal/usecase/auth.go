package usecase

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/domain/repository"
	pkgAuth "github.com/polkiloo/ordercheckout/internal/pkg/auth"
)

const maxLoginLength = 64

// Session identifies the owner of subsequent order requests.
type Session struct {
	UserID int64
	Token  string
}

// AuthUseCase registers order owners and resolves them from tokens.
type AuthUseCase struct {
	users  repository.UserRepository
	hasher pkgAuth.PasswordHasher
	tokens pkgAuth.Strategy
}

// NewAuthUseCase constructs AuthUseCase.
func NewAuthUseCase(users repository.UserRepository, hasher pkgAuth.PasswordHasher, strategy pkgAuth.Strategy) *AuthUseCase {
	return &AuthUseCase{users: users, hasher: hasher, tokens: strategy}
}

// Register creates a user and opens a session for it.
func (u *AuthUseCase) Register(ctx context.Context, login, password string) (*Session, error) {
	login, err := normalizeCredentials(login, password)
	if err != nil {
		return nil, err
	}

	hash, err := u.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	usr, err := u.users.Create(ctx, login, hash)
	if err != nil {
		return nil, err
	}
	return u.session(usr.ID)
}

// Authenticate validates credentials and opens a session.
func (u *AuthUseCase) Authenticate(ctx context.Context, login, password string) (*Session, error) {
	login, err := normalizeCredentials(login, password)
	if err != nil {
		return nil, err
	}

	usr, err := u.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return nil, domainErrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := u.hasher.Compare(usr.PasswordHash, password); err != nil {
		return nil, domainErrors.ErrInvalidCredentials
	}
	return u.session(usr.ID)
}

// ParseToken extracts user ID from provided token.
func (u *AuthUseCase) ParseToken(token string) (int64, error) {
	if token == "" {
		return 0, pkgAuth.ErrInvalidToken
	}
	return u.tokens.ParseToken(token)
}

func (u *AuthUseCase) session(userID int64) (*Session, error) {
	token, err := u.tokens.IssueToken(userID)
	if err != nil {
		return nil, err
	}
	return &Session{UserID: userID, Token: token}, nil
}

func normalizeCredentials(login, password string) (string, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" || utf8.RuneCountInString(login) > maxLoginLength {
		return "", domainErrors.ErrInvalidCredentials
	}
	return login, nil
}
