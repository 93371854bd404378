package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"tg-wp-mirror/internal/domain"
	"tg-wp-mirror/internal/infra/metrics"
)

const apiPrefix = "/wp-json/wp/v2"

// Client работает с REST API WordPress; сайт выбирается аргументом target на каждый вызов.
type Client struct {
	httpClient *http.Client
	username   string
	password   string
}

var _ domain.Destination = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New создаёт клиента с парой логин/пароль приложения.
func New(username, password string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		username:   username,
		password:   password,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type postBody struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	Status        string `json:"status"`
	FeaturedMedia *int64 `json:"featured_media,omitempty"`
}

type postResponse struct {
	ID   int64  `json:"id"`
	Link string `json:"link"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreatePost публикует новый пост и возвращает его id и ссылку.
func (c *Client) CreatePost(ctx context.Context, target domain.Target, post domain.PostPayload) (domain.RemotePost, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, target, "/posts", toBody(post))
	if err != nil {
		return domain.RemotePost{}, err
	}
	var out postResponse
	if err := c.do(req, target, "create_post", &out); err != nil {
		return domain.RemotePost{}, err
	}
	if out.ID == 0 {
		return domain.RemotePost{}, fmt.Errorf("%w: create post: empty id in response", domain.ErrPublish)
	}
	return domain.RemotePost{ID: out.ID, Link: out.Link}, nil
}

// UpdatePost обновляет существующий пост. Отсутствующий пост даёт domain.ErrNotFound.
func (c *Client) UpdatePost(ctx context.Context, target domain.Target, postID int64, post domain.PostPayload) error {
	req, err := c.newJSONRequest(ctx, http.MethodPost, target, fmt.Sprintf("/posts/%d", postID), toBody(post))
	if err != nil {
		return err
	}
	return c.do(req, target, "update_post", nil)
}

// DeletePost переносит пост в корзину.
func (c *Client) DeletePost(ctx context.Context, target domain.Target, postID int64) error {
	req, err := c.newJSONRequest(ctx, http.MethodDelete, target, fmt.Sprintf("/posts/%d", postID), nil)
	if err != nil {
		return err
	}
	return c.do(req, target, "delete_post", nil)
}

// UploadMedia загружает файл в медиатеку и возвращает id вложения.
func (c *Client) UploadMedia(ctx context.Context, target domain.Target, file domain.MediaFile) (int64, error) {
	endpoint, err := resolve(target, "/media")
	if err != nil {
		return 0, err
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(file.Data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(file.Data))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Name))
	var out postResponse
	if err := c.do(req, target, "upload_media", &out); err != nil {
		return 0, err
	}
	if out.ID == 0 {
		return 0, fmt.Errorf("%w: upload media: empty id in response", domain.ErrPublish)
	}
	return out.ID, nil
}

func toBody(post domain.PostPayload) postBody {
	return postBody{
		Title:         post.Title,
		Content:       post.Content,
		Status:        "publish",
		FeaturedMedia: post.FeaturedMedia,
	}
}

func resolve(target domain.Target, endpoint string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(target.BaseURL))
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("%w: invalid destination url %q", domain.ErrPublish, target.BaseURL)
	}
	parsed.Path = path.Clean(strings.TrimSuffix(parsed.Path, "/") + apiPrefix + endpoint)
	return parsed.String(), nil
}

func (c *Client) newJSONRequest(ctx context.Context, method string, target domain.Target, endpoint string, body any) (*http.Request, error) {
	resolved, err := resolve(target, endpoint)
	if err != nil {
		return nil, err
	}
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, resolved, buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, target domain.Target, op string, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("wordpress", op, target.Key, start, err)
		return fmt.Errorf("%w: %s: %v", domain.ErrTransport, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		err := statusError(op, resp)
		metrics.ObserveNetworkRequest("wordpress", op, target.Key, start, err)
		return err
	}
	metrics.ObserveNetworkRequest("wordpress", op, target.Key, start, nil)
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", domain.ErrPublish, op, err)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(data))
	var apiErr apiError
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Code != "" {
		msg = apiErr.Code + ": " + apiErr.Message
	}
	var kind error
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		kind = domain.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		kind = domain.ErrTransport
	default:
		kind = domain.ErrPublish
	}
	return fmt.Errorf("%w: %s: status %d: %s", kind, op, resp.StatusCode, msg)
}
