// Package dex はスクレイピング系の予備プロバイダのアダプタを提供する。
// 応答の形が一定しないため、フィールド名の揺れを吸収して検索候補に変換する。
package dex

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/koanime/internal/model"
	"github.com/hitoshi/koanime/internal/provider/upstream"
)

// Tag はキャッシュキーとメトリクスに使うプロバイダ名。
const Tag = "dex"

// resultKeys は結果配列が格納されうるキー。先に見つかったものを使う。
var resultKeys = []string{"results", "data", "items", "animes"}

// Client は予備プロバイダのアダプタ。検索のみを提供する。
type Client struct {
	http    *upstream.Client
	baseURL string
}

// NewClient はClientを生成する。
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger, maxBodySize int64) *Client {
	return &Client{
		http:    upstream.NewClient(Tag, httpClient, logger, maxBodySize),
		baseURL: baseURL,
	}
}

// Tag はプロバイダ名を返す。
func (c *Client) Tag() string { return Tag }

// Search は検索候補を返す。人気度は提供されないため0とする。
func (c *Client) Search(ctx context.Context, query string) ([]model.SearchCandidate, error) {
	var raw any
	if err := c.http.GetJSON(ctx, c.baseURL+"/search/"+url.PathEscape(query), nil, &raw); err != nil {
		return nil, err
	}

	items := resultArray(raw)
	out := make([]model.SearchCandidate, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		cand, ok := candidate(m)
		if !ok {
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

func resultArray(raw any) []any {
	switch v := raw.(type) {
	case []any:
		return v
	case map[string]any:
		for _, k := range resultKeys {
			if arr, ok := v[k].([]any); ok {
				return arr
			}
		}
	}
	return nil
}

// candidate は1件を検索候補に変換する。タイトルが無いものは捨てる。
func candidate(m map[string]any) (model.SearchCandidate, bool) {
	title := upstream.FirstNonEmpty(str(m, "title"), str(m, "name"), str(m, "animeTitle"), str(m, "jname"))
	if title == "" {
		return model.SearchCandidate{}, false
	}

	summary := model.AnimeSummary{
		Title:  title,
		Image:  upstream.FirstNonEmpty(str(m, "image"), str(m, "img"), str(m, "poster"), str(m, "thumbnail")),
		Type:   upstream.FirstNonEmpty(str(m, "type"), str(m, "format")),
		Genres: []string{},
	}

	if id, ok := intValue(m["mal_id"]); ok && id > 0 {
		summary.ID, summary.Source = id, model.SourceMAL
	} else if id, ok := firstInt(m, "id", "animeId"); ok && id > 0 {
		summary.ID, summary.Source = id, model.SourceDex
	} else {
		summary.Source = model.SourceDex
	}

	if y, ok := intValue(m["year"]); ok {
		summary.Year = upstream.Year(y)
	} else {
		summary.Year = upstream.YearIn(str(m, "releaseDate"))
	}

	if r, ok := floatValue(m["rating"]); ok {
		if r > 10 {
			r = math.Round(r) / 10
		}
		summary.Rating = upstream.Rating(r)
	}

	titles := []string{title}
	for _, k := range []string{"name", "jname", "animeTitle", "otherName"} {
		if s := str(m, k); s != "" && s != title {
			titles = append(titles, s)
		}
	}
	return model.SearchCandidate{Summary: summary, Titles: titles}, true
}

func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func firstInt(m map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		if v, ok := intValue(m[k]); ok {
			return v, true
		}
	}
	return 0, false
}

// intValue は数値または数値文字列を整数として読む。
func intValue(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int(x), true
	case string:
		i, err := strconv.Atoi(x)
		return i, err == nil
	}
	return 0, false
}

func floatValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
