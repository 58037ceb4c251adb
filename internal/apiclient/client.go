package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lawtutor/internal/domain"
)

// Client is the typed HTTP client the chat session layer talks through.
// Every request carries the user_uid query parameter.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// APIError represents a backend error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a 404 API error.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// NewClient constructs a backend client acting as userID.
func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userID:     userID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SendMessageRequest is the payload for the chat endpoint.
type SendMessageRequest struct {
	ChatID  string              `json:"chatId,omitempty"`
	Message string              `json:"message"`
	Chapter string              `json:"chapter,omitempty"`
	Files   []domain.StagedFile `json:"attachedFiles,omitempty"`
}

// SendMessageResponse mirrors the chat endpoint envelope.
type SendMessageResponse struct {
	Reply             string               `json:"reply"`
	Timestamp         time.Time            `json:"timestamp"`
	Chapter           string               `json:"chapter"`
	ChatID            string               `json:"chatId"`
	UserMessageID     string               `json:"userMessageId"`
	AIMessageID       string               `json:"aiMessageId"`
	StructuredContent []domain.FileContent `json:"structuredFileContent"`
	ChatRenamed       bool                 `json:"chatRenamed"`
	NewChatName       string               `json:"newChatName"`
}

// EditMessageResponse mirrors the edit endpoint envelope.
type EditMessageResponse struct {
	Reply             string    `json:"reply"`
	Timestamp         time.Time `json:"timestamp"`
	AIMessageID       string    `json:"aiMessageId"`
	ReplacesMessageID string    `json:"replacesMessageId"`
}

func (c *Client) ListChats(ctx context.Context) ([]domain.Chat, error) {
	var out struct {
		Chats []domain.Chat `json:"chats"`
	}
	if err := c.get(ctx, "/api/chats", nil, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

func (c *Client) CreateChat(ctx context.Context, name string) (string, error) {
	var out struct {
		ChatID string `json:"chat_id"`
	}
	err := c.post(ctx, "/api/chats", map[string]string{"chatName": name}, &out)
	if err != nil {
		return "", err
	}
	return out.ChatID, nil
}

func (c *Client) GetChat(ctx context.Context, chatID string) (domain.Chat, []domain.Message, error) {
	var out struct {
		Chat     domain.Chat      `json:"chat"`
		Messages []domain.Message `json:"messages"`
	}
	if err := c.get(ctx, "/api/chats/"+chatID, nil, &out); err != nil {
		return domain.Chat{}, nil, err
	}
	return out.Chat, out.Messages, nil
}

func (c *Client) RenameChat(ctx context.Context, chatID, newName string) error {
	return c.doJSON(ctx, http.MethodPut, "/api/chats/"+chatID+"/rename",
		map[string]string{"newName": newName}, nil)
}

func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/chats/"+chatID, nil, nil)
}

func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error) {
	var out SendMessageResponse
	if err := c.post(ctx, "/api/chat", req, &out); err != nil {
		return SendMessageResponse{}, err
	}
	return out, nil
}

func (c *Client) EditMessage(ctx context.Context, chatID, messageID, newText string) (EditMessageResponse, error) {
	var out EditMessageResponse
	err := c.post(ctx, "/api/chat/edit-regenerate", map[string]string{
		"chatId":        chatID,
		"userMessageId": messageID,
		"newMessage":    newText,
	}, &out)
	if err != nil {
		return EditMessageResponse{}, err
	}
	return out, nil
}

func (c *Client) ListBookmarks(ctx context.Context) ([]domain.Bookmark, error) {
	var out struct {
		Bookmarks []domain.Bookmark `json:"bookmarks"`
	}
	if err := c.get(ctx, "/api/bookmarks", nil, &out); err != nil {
		return nil, err
	}
	return out.Bookmarks, nil
}

func (c *Client) SearchBookmarks(ctx context.Context, query string) ([]domain.Bookmark, error) {
	var out struct {
		Bookmarks []domain.Bookmark `json:"bookmarks"`
	}
	if err := c.get(ctx, "/api/bookmarks/search", url.Values{"q": {query}}, &out); err != nil {
		return nil, err
	}
	return out.Bookmarks, nil
}

func (c *Client) SaveBookmark(ctx context.Context, b domain.Bookmark) (domain.Bookmark, error) {
	var out struct {
		Bookmark domain.Bookmark `json:"bookmark"`
	}
	if err := c.post(ctx, "/api/bookmarks", b, &out); err != nil {
		return domain.Bookmark{}, err
	}
	return out.Bookmark, nil
}

func (c *Client) DeleteBookmark(ctx context.Context, bookmarkID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/bookmarks/"+bookmarkID, nil, nil)
}

func (c *Client) ClearBookmarks(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/bookmarks", nil, nil)
}

func (c *Client) ListUploads(ctx context.Context) ([]domain.Upload, error) {
	var out struct {
		Uploads []domain.Upload `json:"uploads"`
	}
	if err := c.get(ctx, "/api/uploads", nil, &out); err != nil {
		return nil, err
	}
	return out.Uploads, nil
}

// Upload sends one file as multipart form data, optionally tagged with
// the chapter it belongs to.
func (c *Client) Upload(ctx context.Context, filename, chapter string, r io.Reader) (domain.Upload, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return domain.Upload{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return domain.Upload{}, err
	}
	if chapter != "" {
		if err := writer.WriteField("chapter", chapter); err != nil {
			return domain.Upload{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return domain.Upload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/upload"), &buf)
	if err != nil {
		return domain.Upload{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out struct {
		Upload domain.Upload `json:"upload"`
	}
	if err := c.do(req, &out); err != nil {
		return domain.Upload{}, err
	}
	return out.Upload, nil
}

func (c *Client) DeleteUpload(ctx context.Context, uploadID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/uploads/"+uploadID, nil, nil)
}

func (c *Client) History(ctx context.Context) ([]domain.Message, error) {
	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := c.get(ctx, "/api/history", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) ClearHistory(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/history", nil, nil)
}

func (c *Client) Chapters(ctx context.Context) ([]string, error) {
	var out struct {
		Chapters []string `json:"chapters"`
	}
	if err := c.get(ctx, "/api/chapters", nil, &out); err != nil {
		return nil, err
	}
	return out.Chapters, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path, query), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, payload, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) url(path string, query ...url.Values) string {
	values := url.Values{}
	if len(query) > 0 && query[0] != nil {
		for k, vs := range query[0] {
			for _, v := range vs {
				values.Add(k, v)
			}
		}
	}
	if c.userID != "" {
		values.Set("user_uid", c.userID)
	}
	if len(values) == 0 {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + values.Encode()
}
