// Package auth はユーザー名とパスワードによるアカウント作成・ログインと、
// 署名付きトークンによる認証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/koanime/internal/model"
	"github.com/hitoshi/koanime/internal/repository"
)

const (
	maxUsernameLength = 32
	minPasswordLength = 6
)

// dummyHash はユーザーが存在しない場合にも照合時間を揃えるためのハッシュ。
var dummyHash, _ = HashPassword("koanime-dummy-password")

// Result はサインアップ・ログイン成功時に返すトークンとユーザー。
type Result struct {
	Token     string
	ExpiresAt time.Time
	User      model.AuthUser
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users  repository.UserRepository
	tokens *TokenService
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, tokens *TokenService) *Service {
	return &Service{users: users, tokens: tokens, now: time.Now}
}

// Signup はアカウントを作成し、トークンを発行する。
// ユーザー名は前後の空白を除いて1〜32文字、パスワードは6文字以上とする。
func (s *Service) Signup(ctx context.Context, username, password string) (*Result, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return nil, model.NewInvalidInputError("ユーザー名を入力してください")
	}
	if utf8.RuneCountInString(name) > maxUsernameLength {
		return nil, model.NewInvalidInputError(fmt.Sprintf("ユーザー名は%d文字以内で入力してください", maxUsernameLength))
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return nil, model.NewInvalidInputError(fmt.Sprintf("パスワードは%d文字以上で入力してください", minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return nil, model.NewInvalidInputError("パスワードが長すぎます")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Username:     name,
		PasswordHash: hash,
		CreatedAt:    s.now().UnixMilli(),
		WatchHistory: []model.WatchEntry{},
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, model.NewUsernameTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

// Login はユーザー名とパスワードを照合し、トークンを発行する。
// 失敗理由（ユーザー名・パスワードのどちらが誤りか）は区別しない。
func (s *Service) Login(ctx context.Context, username, password string) (*Result, error) {
	name := strings.TrimSpace(username)
	if name == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.users.FindByUsername(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		CheckPassword(dummyHash, password)
		return nil, model.NewInvalidCredentialsError()
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, model.NewInvalidCredentialsError()
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return s.issue(user)
}

// Authenticate はトークンを検証し、ユーザーIDを返す。
func (s *Service) Authenticate(token string) (string, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return "", model.NewUnauthorizedError()
	}
	return userID, nil
}

// CurrentUser はユーザーIDに対応する公開用ユーザー情報を返す。
func (s *Service) CurrentUser(ctx context.Context, userID string) (*model.AuthUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	pub := user.Public()
	return &pub, nil
}

// TokenTTL はトークンの有効期間を返す。
func (s *Service) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *Service) issue(user *model.User) (*Result, error) {
	token, expires, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Result{Token: token, ExpiresAt: expires, User: user.Public()}, nil
}
