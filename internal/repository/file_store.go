package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hitoshi/koanime/internal/model"
)

// fileDocument はファイルストアの永続化形式。
type fileDocument struct {
	Users []*model.User `json:"users"`
}

// writeOp は書き込みキューに積まれる1操作。
type writeOp struct {
	apply  func(doc *fileDocument) error
	result chan error
}

// FileStore は単一のJSON文書にユーザーと視聴履歴を保存するストア。
// 書き込みはすべて1つのgoroutineが到着順に処理し、毎回ファイル全体を読み込んで変更し、
// 一時ファイルへ書き出してからリネームで置き換える。
// 読み込みはキューを経由しないため、並行する書き込みの直前の状態を返すことがある。
// プロセス間のロックは行わないため、同じファイルを使うインスタンスは1つに限る。
type FileStore struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	ops    chan writeOp
	done   chan struct{}
}

// NewFileStore はFileStoreを生成し、書き込みgoroutineを起動する。
// 親ディレクトリが存在しない場合は作成する。
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &FileStore{
		path:   path,
		logger: logger,
		ops:    make(chan writeOp),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *FileStore) run() {
	defer close(s.done)
	for op := range s.ops {
		err := s.applyWrite(op.apply)
		if err != nil && !isDomainError(err) {
			s.logger.Error("データファイルへの書き込みに失敗しました",
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
		}
		op.result <- err
	}
}

// Close は書き込みキューを閉じ、処理中の書き込みの完了を待つ。
func (s *FileStore) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ops)
	s.mu.Unlock()
	<-s.done
}

// write は操作を書き込みキューに積み、適用結果を待つ。
func (s *FileStore) write(ctx context.Context, apply func(doc *fileDocument) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	op := writeOp{apply: apply, result: make(chan error, 1)}
	select {
	case s.ops <- op:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	return <-op.result
}

func (s *FileStore) applyWrite(apply func(doc *fileDocument) error) error {
	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := apply(doc); err != nil {
		return err
	}
	return s.save(doc)
}

// load はファイルを読み込む。ファイルが存在しない場合は空の文書を返す。
func (s *FileStore) load() (*fileDocument, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &fileDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	doc := &fileDocument{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode data file: %w", err)
	}
	return doc, nil
}

// save は一時ファイルに書き出してからリネームで置き換える。
func (s *FileStore) save(doc *fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode data file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}

func findUser(doc *fileDocument, match func(u *model.User) bool) *model.User {
	for _, u := range doc.Users {
		if match(u) {
			return u
		}
	}
	return nil
}

func byID(id string) func(u *model.User) bool {
	return func(u *model.User) bool { return u.ID == id }
}

func byUsername(name string) func(u *model.User) bool {
	return func(u *model.User) bool { return strings.EqualFold(u.Username, name) }
}

// withoutHistory は視聴履歴を除いたユーザーのコピーを返す。
func withoutHistory(u *model.User) *model.User {
	c := *u
	c.WatchHistory = nil
	return &c
}

// Create はユーザーを作成する。
func (s *FileStore) Create(ctx context.Context, user *model.User) error {
	return s.write(ctx, func(doc *fileDocument) error {
		if findUser(doc, byUsername(user.Username)) != nil {
			return ErrUsernameTaken
		}
		u := *user
		u.WatchHistory = append([]model.WatchEntry{}, user.WatchHistory...)
		doc.Users = append(doc.Users, &u)
		return nil
	})
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (s *FileStore) FindByID(_ context.Context, id string) (*model.User, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	if u := findUser(doc, byID(id)); u != nil {
		return withoutHistory(u), nil
	}
	return nil, nil
}

// FindByUsername はユーザー名で大文字小文字を区別せずに検索する。見つからない場合はnilを返す。
func (s *FileStore) FindByUsername(_ context.Context, username string) (*model.User, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	if u := findUser(doc, byUsername(username)); u != nil {
		return withoutHistory(u), nil
	}
	return nil, nil
}

// List は全ユーザーを視聴履歴付きで返す。
func (s *FileStore) List(_ context.Context) ([]*model.User, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, u := range doc.Users {
		sortHistory(u.WatchHistory)
	}
	return doc.Users, nil
}

// ListByUserID はユーザーの視聴履歴を updatedAt の降順で返す。
func (s *FileStore) ListByUserID(_ context.Context, userID string) ([]model.WatchEntry, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	u := findUser(doc, byID(userID))
	if u == nil {
		return []model.WatchEntry{}, nil
	}
	entries := append([]model.WatchEntry{}, u.WatchHistory...)
	sortHistory(entries)
	return entries, nil
}

// Upsert は同じ作品の記録を置き換え、なければ追加する。
func (s *FileStore) Upsert(ctx context.Context, userID string, entry model.WatchEntry) error {
	return s.write(ctx, func(doc *fileDocument) error {
		u := findUser(doc, byID(userID))
		if u == nil {
			return ErrUserNotFound
		}
		for i := range u.WatchHistory {
			if u.WatchHistory[i].AnimeID == entry.AnimeID {
				u.WatchHistory[i] = entry
				return nil
			}
		}
		u.WatchHistory = append(u.WatchHistory, entry)
		return nil
	})
}

// sortHistory は updatedAt の降順に並べる。同時刻は作品IDの昇順。
func sortHistory(entries []model.WatchEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].UpdatedAt != entries[j].UpdatedAt {
			return entries[i].UpdatedAt > entries[j].UpdatedAt
		}
		return entries[i].AnimeID < entries[j].AnimeID
	})
}

var _ Store = (*FileStore)(nil)
