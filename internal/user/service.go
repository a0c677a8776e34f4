// Package user は視聴進捗（続きから見る）のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/hitoshi/koanime/internal/model"
	"github.com/hitoshi/koanime/internal/repository"
)

// ProgressInput は視聴位置の保存リクエスト。
type ProgressInput struct {
	AnimeID  int     `json:"animeId"`
	Episode  int     `json:"episode"`
	Position float64 `json:"position"`
	Title    string  `json:"title"`
	Image    string  `json:"image"`
}

// Service は視聴進捗のサービス層。
type Service struct {
	history repository.WatchHistoryRepository
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(history repository.WatchHistoryRepository) *Service {
	return &Service{history: history, now: time.Now}
}

// Continue はユーザーの視聴履歴を更新日時の降順で返す。
func (s *Service) Continue(ctx context.Context, userID string) ([]model.WatchEntry, error) {
	entries, err := s.history.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("視聴履歴の取得に失敗しました: %w", err)
	}
	return sortHistory(entries), nil
}

// SaveProgress は (ユーザー, 作品) の視聴位置を保存し、更新後の視聴履歴を返す。
// 同じ作品への保存は後勝ちで置き換わる。エピソード番号の単調増加は検査しない。
func (s *Service) SaveProgress(ctx context.Context, userID string, in ProgressInput) ([]model.WatchEntry, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	entry := model.WatchEntry{
		AnimeID:   in.AnimeID,
		Episode:   in.Episode,
		Position:  in.Position,
		Title:     in.Title,
		Image:     in.Image,
		UpdatedAt: s.now().UnixMilli(),
	}
	if err := s.history.Upsert(ctx, userID, entry); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("視聴位置の保存に失敗しました: %w", err)
	}

	slog.Debug("視聴位置を保存しました",
		slog.String("user_id", userID),
		slog.Int("anime_id", in.AnimeID),
		slog.Int("episode", in.Episode),
	)

	return s.Continue(ctx, userID)
}

func validate(in ProgressInput) error {
	switch {
	case in.AnimeID <= 0:
		return model.NewInvalidInputError("animeId は正の整数で指定してください")
	case in.Episode < 0:
		return model.NewInvalidInputError("episode は0以上で指定してください")
	case in.Position < 0 || math.IsNaN(in.Position) || math.IsInf(in.Position, 0):
		return model.NewInvalidInputError("position は0以上の秒数で指定してください")
	}
	return nil
}

func sortHistory(entries []model.WatchEntry) []model.WatchEntry {
	if entries == nil {
		return []model.WatchEntry{}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UpdatedAt > entries[j].UpdatedAt
	})
	return entries
}
