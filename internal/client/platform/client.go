// Package platform is the HTTP and websocket client of the marketplace API.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"autoparc/internal/app/dto"
	"autoparc/internal/client/model"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL *url.URL
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// New returns a client for the API rooted at baseURL, for example
// "http://localhost:8080".
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("platform: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("platform: unsupported scheme %q", u.Scheme)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: u, http: httpClient}, nil
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Auth is the result of a sign-in.
type Auth struct {
	User      model.User
	Token     string
	ExpiresAt time.Time
}

func (c *Client) SignIn(ctx context.Context, email, password string) (Auth, error) {
	var res dto.AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &res); err != nil {
		return Auth{}, err
	}
	c.SetToken(res.Token)
	return Auth{User: model.UserFromRow(res.User), Token: res.Token, ExpiresAt: res.ExpiresAt}, nil
}

func (c *Client) SignUp(ctx context.Context, email, name, password, role string) (Auth, error) {
	var res dto.AuthResponse
	body := map[string]string{"email": email, "name": name, "password": password, "role": role}
	if err := c.do(ctx, http.MethodPost, "/auth/register", nil, body, &res); err != nil {
		return Auth{}, err
	}
	c.SetToken(res.Token)
	return Auth{User: model.UserFromRow(res.User), Token: res.Token, ExpiresAt: res.ExpiresAt}, nil
}

// SignOut revokes the session server-side and forgets the token either way.
func (c *Client) SignOut(ctx context.Context) error {
	defer c.SetToken("")
	if c.Token() == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

func (c *Client) Me(ctx context.Context) (model.User, error) {
	var row dto.UserProfile
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &row); err != nil {
		return model.User{}, err
	}
	return model.UserFromRow(row), nil
}

func (c *Client) User(ctx context.Context, id string) (model.User, error) {
	var row dto.UserProfile
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, nil, &row); err != nil {
		return model.User{}, err
	}
	return model.UserFromRow(row), nil
}

func (c *Client) UpdateProfile(ctx context.Context, patch model.ProfilePatch) (model.User, error) {
	var row dto.UserProfile
	if err := c.do(ctx, http.MethodPatch, "/me/profile", nil, patch.Row(), &row); err != nil {
		return model.User{}, err
	}
	return model.UserFromRow(row), nil
}

// Catalog is one page of listings.
type Catalog struct {
	Items []model.Listing
	Total int
}

func (c *Client) Listings(ctx context.Context, query url.Values) (Catalog, error) {
	var res dto.ListingCatalog
	if err := c.do(ctx, http.MethodGet, "/listings", query, nil, &res); err != nil {
		return Catalog{}, err
	}
	return Catalog{Items: model.ListingsFromRows(res.Items), Total: res.Meta.Total}, nil
}

func (c *Client) Listing(ctx context.Context, id string) (model.Listing, error) {
	var row dto.Listing
	if err := c.do(ctx, http.MethodGet, "/listings/"+url.PathEscape(id), nil, nil, &row); err != nil {
		return model.Listing{}, err
	}
	return model.ListingFromRow(row), nil
}

// CreateListing validates draft locally before sending it.
func (c *Client) CreateListing(ctx context.Context, draft model.ListingDraft) (model.Listing, error) {
	if err := draft.Validate(time.Now()); err != nil {
		return model.Listing{}, err
	}
	var row dto.Listing
	if err := c.do(ctx, http.MethodPost, "/listings", nil, draft.Row(), &row); err != nil {
		return model.Listing{}, err
	}
	return model.ListingFromRow(row), nil
}

func (c *Client) DeleteListing(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/listings/"+url.PathEscape(id), nil, nil, nil)
}

// Chats returns the user's chats and the server's unread total.
func (c *Client) Chats(ctx context.Context) ([]model.Chat, int, error) {
	var res dto.ChatList
	if err := c.do(ctx, http.MethodGet, "/chats", nil, nil, &res); err != nil {
		return nil, 0, err
	}
	return model.ChatsFromRows(res.Items), res.UnreadTotal, nil
}

func (c *Client) StartChat(ctx context.Context, listingID string) (model.Chat, error) {
	var row dto.Chat
	if err := c.do(ctx, http.MethodPost, "/listings/"+url.PathEscape(listingID)+"/chat", nil, nil, &row); err != nil {
		return model.Chat{}, err
	}
	return model.ChatFromRow(row), nil
}

// Messages returns a page of messages, oldest first, and the cursor for
// the previous page.
func (c *Client) Messages(ctx context.Context, chatID, before string, limit int) ([]model.Message, string, error) {
	q := url.Values{}
	if before != "" {
		q.Set("before", before)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var res dto.ChatMessageList
	if err := c.do(ctx, http.MethodGet, "/chats/"+url.PathEscape(chatID)+"/messages", q, nil, &res); err != nil {
		return nil, "", err
	}
	return model.MessagesFromRows(res.Items), res.NextCursor, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID, text, clientID string) (model.Message, error) {
	var row dto.ChatMessage
	body := map[string]string{"text": text, "client_id": clientID}
	if err := c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/messages", nil, body, &row); err != nil {
		return model.Message{}, err
	}
	return model.MessageFromRow(row), nil
}

// MarkRead returns the unread count the server holds afterwards.
func (c *Client) MarkRead(ctx context.Context, chatID string) (int, error) {
	var res dto.ReadState
	if err := c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/read", nil, nil, &res); err != nil {
		return 0, err
	}
	return res.UnreadCount, nil
}

func (c *Client) Typing(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/typing", nil, nil, nil)
}

func (c *Client) Favorites(ctx context.Context) ([]string, error) {
	var res dto.FavoriteList
	if err := c.do(ctx, http.MethodGet, "/me/favorites", nil, nil, &res); err != nil {
		return nil, err
	}
	return model.FavoriteIDs(res), nil
}

func (c *Client) AddFavorite(ctx context.Context, listingID string) error {
	return c.do(ctx, http.MethodPut, "/listings/"+url.PathEscape(listingID)+"/favorite", nil, nil, nil)
}

func (c *Client) RemoveFavorite(ctx context.Context, listingID string) error {
	return c.do(ctx, http.MethodDelete, "/listings/"+url.PathEscape(listingID)+"/favorite", nil, nil, nil)
}

func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]model.Notification, int, error) {
	q := url.Values{}
	if unreadOnly {
		q.Set("unread", "true")
	}
	var res dto.NotificationList
	if err := c.do(ctx, http.MethodGet, "/notifications", q, nil, &res); err != nil {
		return nil, 0, err
	}
	out := make([]model.Notification, 0, len(res.Items))
	for _, n := range res.Items {
		out = append(out, model.NotificationFromRow(n))
	}
	return out, res.UnreadCount, nil
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	var res dto.NotificationReadState
	if err := c.do(ctx, http.MethodPost, "/notifications/read", nil, nil, &res); err != nil {
		return 0, err
	}
	return res.UnreadCount, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1" + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("platform: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("platform: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var payload struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err := json.Unmarshal(raw, &payload); err != nil || payload.Error == "" {
			payload.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("platform: decode %s %s: %w", method, path, err)
	}
	return nil
}
