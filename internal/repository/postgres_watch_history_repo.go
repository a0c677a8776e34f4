package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/koanime/internal/model"
)

// PostgresWatchHistoryRepo はPostgreSQLを使用した視聴履歴リポジトリ。
type PostgresWatchHistoryRepo struct {
	db *sql.DB
}

// NewPostgresWatchHistoryRepo はPostgresWatchHistoryRepoを生成する。
func NewPostgresWatchHistoryRepo(db *sql.DB) *PostgresWatchHistoryRepo {
	return &PostgresWatchHistoryRepo{db: db}
}

// ListByUserID はユーザーの視聴履歴を updated_at の降順で返す。
func (r *PostgresWatchHistoryRepo) ListByUserID(ctx context.Context, userID string) ([]model.WatchEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT anime_id, episode, position, title, image, updated_at
		 FROM watch_history
		 WHERE user_id = $1
		 ORDER BY updated_at DESC, anime_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("視聴履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	entries := []model.WatchEntry{}
	for rows.Next() {
		var e model.WatchEntry
		if err := rows.Scan(&e.AnimeID, &e.Episode, &e.Position, &e.Title, &e.Image, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("視聴履歴の読み込みに失敗しました: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("視聴履歴の読み込みに失敗しました: %w", err)
	}
	return entries, nil
}

// Upsert は UNIQUE(user_id, anime_id) を利用したINSERT ON CONFLICTで視聴位置を保存する。
// 後から書き込まれた値が常に優先される。
func (r *PostgresWatchHistoryRepo) Upsert(ctx context.Context, userID string, e model.WatchEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO watch_history (user_id, anime_id, episode, position, title, image, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, anime_id) DO UPDATE SET
		     episode = EXCLUDED.episode,
		     position = EXCLUDED.position,
		     title = EXCLUDED.title,
		     image = EXCLUDED.image,
		     updated_at = EXCLUDED.updated_at`,
		userID, e.AnimeID, e.Episode, e.Position, e.Title, e.Image, e.UpdatedAt,
	)
	if pqCode(err) == pqForeignKeyViolation {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("視聴履歴の保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ WatchHistoryRepository = (*PostgresWatchHistoryRepo)(nil)

// PostgresStore はユーザーと視聴履歴のPostgreSQLリポジトリをまとめたストア。
type PostgresStore struct {
	*PostgresUserRepo
	*PostgresWatchHistoryRepo
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		PostgresUserRepo:         NewPostgresUserRepo(db),
		PostgresWatchHistoryRepo: NewPostgresWatchHistoryRepo(db),
	}
}

var _ Store = (*PostgresStore)(nil)
