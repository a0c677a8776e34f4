// Package upstream は外部アニメ情報プロバイダへのHTTP呼び出しの共通処理を提供する。
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// UserAgent は外部プロバイダへのリクエストに付与するUser-Agent。
const UserAgent = "koanime/1.0 (+https://github.com/hitoshi/koanime)"

// defaultMaxBodySize はレスポンスボディの読み取り上限（5MB）。
const defaultMaxBodySize = 5 << 20

// Client はプロバイダ1つ分のHTTPクライアント。
type Client struct {
	provider    string
	httpClient  *http.Client
	logger      *slog.Logger
	maxBodySize int64
}

// NewClient はClientを生成する。maxBodySizeが0以下の場合は5MBを上限とする。
func NewClient(provider string, httpClient *http.Client, logger *slog.Logger, maxBodySize int64) *Client {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		provider:    provider,
		httpClient:  httpClient,
		logger:      logger,
		maxBodySize: maxBodySize,
	}
}

// Provider はプロバイダ名を返す。
func (c *Client) Provider() string {
	return c.provider
}

// Get はGETリクエストを送信し、2xxの場合にボディを返す。
// 2xx以外のステータスは*StatusErrorとして返す。
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, accept string) ([]byte, error) {
	reqURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s URL: %w", c.provider, err)
	}
	if len(query) > 0 {
		reqURL.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", c.provider, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("プロバイダへのリクエストに失敗しました",
			slog.String("provider", c.provider),
			slog.String("path", reqURL.Path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s request failed: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if ClassifyHTTPStatus(resp.StatusCode) != OutcomeOK {
		c.logger.Warn("プロバイダがエラーステータスを返しました",
			slog.String("provider", c.provider),
			slog.String("path", reqURL.Path),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, &StatusError{Provider: c.provider, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", c.provider, err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, fmt.Errorf("%s response exceeds %d bytes", c.provider, c.maxBodySize)
	}
	return body, nil
}

// GetJSON はGETリクエストを送信し、レスポンスJSONをvにデコードする。
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, v any) error {
	body, err := c.Get(ctx, rawURL, query, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.provider, err)
	}
	return nil
}
