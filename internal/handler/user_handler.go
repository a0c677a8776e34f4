package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/koanime/internal/model"
	"github.com/hitoshi/koanime/internal/user"
)

// ProgressServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type ProgressServiceInterface interface {
	Continue(ctx context.Context, userID string) ([]model.WatchEntry, error)
	SaveProgress(ctx context.Context, userID string, in user.ProgressInput) ([]model.WatchEntry, error)
}

// UserHandler は視聴進捗のHTTPハンドラー。
type UserHandler struct {
	service ProgressServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service ProgressServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

type historyResponse struct {
	History []model.WatchEntry `json:"history"`
}

// flexNumber はJSONの数値と数値文字列の両方を受け付ける。
type flexNumber struct {
	value float64
	set   bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		n.value, n.set = f, true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	n.value, n.set = f, true
	return nil
}

type progressRequest struct {
	AnimeID  flexNumber `json:"animeId"`
	Episode  flexNumber `json:"episode"`
	Position flexNumber `json:"position"`
	Title    string     `json:"title"`
	Image    string     `json:"image"`
}

func (p progressRequest) input() (user.ProgressInput, error) {
	if !p.AnimeID.set || !p.Episode.set || !p.Position.set {
		return user.ProgressInput{}, model.NewInvalidInputError("animeId, episode, position は必須です")
	}
	if p.AnimeID.value != math.Trunc(p.AnimeID.value) || p.Episode.value != math.Trunc(p.Episode.value) {
		return user.ProgressInput{}, model.NewInvalidInputError("animeId と episode は整数で指定してください")
	}
	if math.Abs(p.AnimeID.value) > math.MaxInt32 || math.Abs(p.Episode.value) > math.MaxInt32 {
		return user.ProgressInput{}, model.NewInvalidInputError("animeId または episode が大きすぎます")
	}
	return user.ProgressInput{
		AnimeID:  int(p.AnimeID.value),
		Episode:  int(p.Episode.value),
		Position: p.Position.value,
		Title:    p.Title,
		Image:    p.Image,
	}, nil
}

// Continue は続きから見るための視聴履歴を返す。
// GET /api/user/continue
func (h *UserHandler) Continue(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	history, err := h.service.Continue(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, historyResponse{History: history})
}

// SaveProgress は視聴位置を保存し、更新後の視聴履歴を返す。
// POST /api/user/progress
func (h *UserHandler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req progressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		handleServiceError(w, err)
		return
	}

	history, err := h.service.SaveProgress(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, historyResponse{History: history})
}
