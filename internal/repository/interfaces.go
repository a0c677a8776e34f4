// Package repository はアカウントと視聴履歴の永続化を提供する。
// ホスト型ストア（PostgreSQL）とファイルストア（単一JSON文書）の2実装があり、
// FallbackStore がホスト型ストアの障害時にファイルストアへ切り替える。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/koanime/internal/model"
)

var (
	// ErrUsernameTaken は同じユーザー名（大文字小文字を区別しない）が既に存在することを示す。
	ErrUsernameTaken = errors.New("repository: username already taken")
	// ErrUserNotFound は指定ユーザーが存在しないことを示す。
	ErrUserNotFound = errors.New("repository: user not found")
	// ErrStoreClosed はクローズ済みのストアへの書き込みを示す。
	ErrStoreClosed = errors.New("repository: store is closed")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。ユーザー名が重複する場合はErrUsernameTakenを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名（大文字小文字を区別しない）でユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// List は全ユーザーを視聴履歴付きで返す。
	List(ctx context.Context) ([]*model.User, error)
}

// WatchHistoryRepository は視聴履歴の永続化インターフェース。
type WatchHistoryRepository interface {
	// ListByUserID はユーザーの視聴履歴を updatedAt の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]model.WatchEntry, error)

	// Upsert は (userID, animeID) をキーに視聴位置を保存する。既存の記録は置き換える。
	// ユーザーが存在しない場合はErrUserNotFoundを返す。
	Upsert(ctx context.Context, userID string, entry model.WatchEntry) error
}

// Store はユーザーと視聴履歴をまとめて扱うストア。
type Store interface {
	UserRepository
	WatchHistoryRepository
}

// isDomainError はストアの障害ではなく呼び出し側の条件によるエラーかを判定する。
func isDomainError(err error) bool {
	return errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, context.Canceled)
}
