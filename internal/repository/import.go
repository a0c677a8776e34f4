package repository

import (
	"context"
	"errors"
	"fmt"
)

// ImportResult はユーザー移行の結果。
type ImportResult struct {
	Imported int
	Skipped  int
	Entries  int
}

// Import はsrcの全ユーザーと視聴履歴をdstへ複製する。
// dstに同じユーザー名が既に存在するユーザーは移行しない。IDと作成日時は保持する。
func Import(ctx context.Context, src UserRepository, dst Store) (ImportResult, error) {
	var res ImportResult

	users, err := src.List(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list source users: %w", err)
	}

	for _, u := range users {
		if err := dst.Create(ctx, withoutHistory(u)); err != nil {
			if errors.Is(err, ErrUsernameTaken) {
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("failed to import user %s: %w", u.Username, err)
		}
		for _, e := range u.WatchHistory {
			if err := dst.Upsert(ctx, u.ID, e); err != nil {
				return res, fmt.Errorf("failed to import history of %s: %w", u.Username, err)
			}
			res.Entries++
		}
		res.Imported++
	}
	return res, nil
}
