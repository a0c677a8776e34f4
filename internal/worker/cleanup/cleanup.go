// Package cleanup はプロセス内キャッシュの期限切れエントリを定期的に削除するジョブを提供する。
// キャッシュは参照時にもTTLを判定するため、このジョブはメモリ回収のみを担う。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Sweeper は期限切れエントリを削除し、削除件数を返す。
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepRecorder は削除件数を計測する。
type SweepRecorder interface {
	RecordCacheSweep(removed int)
}

// CleanupJob は期限切れキャッシュエントリの削除ジョブ。
// 冪等であり、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	sweeper  Sweeper
	recorder SweepRecorder
	logger   *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(sweeper Sweeper, recorder SweepRecorder, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{sweeper: sweeper, recorder: recorder, logger: logger}
}

// Run は期限切れエントリを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	removed, err := j.sweeper.Sweep(ctx)
	if err != nil {
		j.logger.Error("キャッシュクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("キャッシュクリーンアップの実行に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordCacheSweep(removed)
	}

	j.logger.Info("キャッシュクリーンアップジョブが完了しました",
		slog.Int("deleted_count", removed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は指定間隔のティッカーでジョブを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("キャッシュクリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("キャッシュクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
