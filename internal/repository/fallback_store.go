package repository

import (
	"context"
	"log/slog"

	"github.com/hitoshi/koanime/internal/model"
)

// FallbackRecorder はファイルストアへのフォールバックを計測する。
type FallbackRecorder interface {
	RecordStoreFallback(operation string)
}

// FallbackStore はホスト型ストアを優先し、障害時にファイルストアで処理するストア。
// ユーザー名の重複など呼び出し側の条件によるエラーはそのまま返す。
type FallbackStore struct {
	primary   Store
	secondary Store
	logger    *slog.Logger
	recorder  FallbackRecorder
}

// NewFallbackStore はFallbackStoreを生成する。recorderはnilでもよい。
func NewFallbackStore(primary, secondary Store, logger *slog.Logger, recorder FallbackRecorder) *FallbackStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackStore{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
		recorder:  recorder,
	}
}

// shouldFallback はprimaryのエラーを記録し、secondaryで再試行すべきかを返す。
func (s *FallbackStore) shouldFallback(op string, err error) bool {
	if err == nil || isDomainError(err) {
		return false
	}
	s.logger.Warn("ホスト型ストアが利用できないためファイルストアを使用します",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	if s.recorder != nil {
		s.recorder.RecordStoreFallback(op)
	}
	return true
}

// Create はユーザーを作成する。
func (s *FallbackStore) Create(ctx context.Context, user *model.User) error {
	err := s.primary.Create(ctx, user)
	if s.shouldFallback("create_user", err) {
		return s.secondary.Create(ctx, user)
	}
	return err
}

// FindByID は指定IDのユーザーを取得する。
func (s *FallbackStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, err := s.primary.FindByID(ctx, id)
	if s.shouldFallback("find_user", err) {
		return s.secondary.FindByID(ctx, id)
	}
	return u, err
}

// FindByUsername はユーザー名でユーザーを取得する。
func (s *FallbackStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := s.primary.FindByUsername(ctx, username)
	if s.shouldFallback("find_user", err) {
		return s.secondary.FindByUsername(ctx, username)
	}
	return u, err
}

// List は全ユーザーを返す。
func (s *FallbackStore) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.primary.List(ctx)
	if s.shouldFallback("list_users", err) {
		return s.secondary.List(ctx)
	}
	return users, err
}

// ListByUserID はユーザーの視聴履歴を返す。
func (s *FallbackStore) ListByUserID(ctx context.Context, userID string) ([]model.WatchEntry, error) {
	entries, err := s.primary.ListByUserID(ctx, userID)
	if s.shouldFallback("list_history", err) {
		return s.secondary.ListByUserID(ctx, userID)
	}
	return entries, err
}

// Upsert は視聴位置を保存する。
func (s *FallbackStore) Upsert(ctx context.Context, userID string, entry model.WatchEntry) error {
	err := s.primary.Upsert(ctx, userID, entry)
	if s.shouldFallback("upsert_progress", err) {
		return s.secondary.Upsert(ctx, userID, entry)
	}
	return err
}

var _ Store = (*FallbackStore)(nil)
