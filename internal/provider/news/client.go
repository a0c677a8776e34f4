// Package news はアニメ関連ニュースのRSS/Atomフィードを取得するアダプタを提供する。
package news

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/hitoshi/koanime/internal/model"
	"github.com/hitoshi/koanime/internal/provider/upstream"
)

// Tag はキャッシュキーとメトリクスに使うプロバイダ名。
const Tag = "news"

const (
	maxItems      = 20
	maxSummaryLen = 280
)

// TextSanitizer はHTML断片をプレーンテキストに変換する。
type TextSanitizer interface {
	PlainText(raw string) string
}

// URLValidator は記事リンクや画像URLの安全性を検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Client はニュースフィードのアダプタ。
type Client struct {
	http      *upstream.Client
	feedURL   string
	sanitizer TextSanitizer
	validator URLValidator
}

// NewClient はClientを生成する。
func NewClient(feedURL string, httpClient *http.Client, logger *slog.Logger, maxBodySize int64, sanitizer TextSanitizer, validator URLValidator) *Client {
	return &Client{
		http:      upstream.NewClient(Tag, httpClient, logger, maxBodySize),
		feedURL:   feedURL,
		sanitizer: sanitizer,
		validator: validator,
	}
}

// Tag はプロバイダ名を返す。
func (c *Client) Tag() string { return Tag }

// News はフィードの先頭から最大20件の記事を返す。
// リンクが安全でない記事は除外し、安全でない画像URLは空にする。
func (c *Client) News(ctx context.Context) ([]model.NewsItem, error) {
	body, err := c.http.Get(ctx, c.feedURL, nil, "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse news feed: %w", err)
	}

	out := make([]model.NewsItem, 0, maxItems)
	for _, item := range parsed.Items {
		if len(out) == maxItems {
			break
		}
		if item == nil {
			continue
		}
		n, ok := c.convert(item)
		if !ok {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (c *Client) convert(item *gofeed.Item) (model.NewsItem, bool) {
	link := item.Link
	if link == "" && (strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://")) {
		link = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if title == "" || c.validator.ValidateURL(link) != nil {
		return model.NewsItem{}, false
	}

	n := model.NewsItem{
		Title:   c.sanitizer.PlainText(title),
		Link:    link,
		Summary: truncate(c.sanitizer.PlainText(upstream.FirstNonEmpty(item.Description, item.Content)), maxSummaryLen),
	}
	if item.PublishedParsed != nil {
		n.PublishedAt = item.PublishedParsed.UTC().Format(time.RFC3339)
	} else if item.UpdatedParsed != nil {
		n.PublishedAt = item.UpdatedParsed.UTC().Format(time.RFC3339)
	}
	if img := thumbnail(item); img != "" && c.validator.ValidateURL(img) == nil {
		n.Image = img
	}
	return n, true
}

// thumbnail は記事画像、画像のenclosure、本文中の最初の<img>の順に探す。
func thumbnail(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	if src := firstImageSrc(item.Content); src != "" {
		return src
	}
	return firstImageSrc(item.Description)
}

// firstImageSrc はHTML断片から最初のimg要素のsrc属性を取り出す。
func firstImageSrc(fragment string) string {
	if fragment == "" {
		return ""
	}
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) != "img" || !hasAttr {
				continue
			}
			for {
				key, val, more := tokenizer.TagAttr()
				if strings.EqualFold(string(key), "src") {
					return string(val)
				}
				if !more {
					break
				}
			}
		}
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "…"
}
