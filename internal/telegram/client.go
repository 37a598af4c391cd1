// Package telegram is the messaging gateway: a thin client over the
// Telegram Bot API. Failures here are never fatal to the deal state
// machine: callers log and continue.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Post is one unit of publishable content: text plus optional media
// references (Telegram file_ids, re-sent by reference rather than
// re-uploaded) and an optional inline URL button.
type Post struct {
	Text         string
	MediaFileIDs []string
	MediaType    string // photo / video, empty for text-only
	ButtonText   string
	ButtonURL    string
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(baseURL, token string, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

type message struct {
	MessageID int64 `json:"message_id"`
}

// APIError carries the Bot API error code so callers can distinguish
// "message to copy not found" from transport failures.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: api error %d: %s", e.Code, e.Description)
}

// IsNotFound reports whether err is a Bot API rejection for a missing
// message (the signal the integrity probe relies on).
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	if !ok {
		return false
	}
	return apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Description), "not found")
}

func (c *Client) call(ctx context.Context, method string, params map[string]any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: bot api unavailable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var apiResp apiResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return fmt.Errorf("telegram: malformed response: %w", err)
	}
	if !apiResp.OK {
		return &APIError{Code: apiResp.ErrorCode, Description: apiResp.Description}
	}
	if out != nil {
		return json.Unmarshal(apiResp.Result, out)
	}
	return nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	params := map[string]any{"chat_id": chatID, "text": text}
	var msg message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// PublishPost posts one content unit to a chat, picking the right Bot
// API method for its media shape, and returns the created message ids.
func (c *Client) PublishPost(ctx context.Context, chatID int64, post Post) ([]int64, error) {
	switch {
	case len(post.MediaFileIDs) > 1:
		return c.sendMediaGroup(ctx, chatID, post)
	case len(post.MediaFileIDs) == 1:
		id, err := c.sendSingleMedia(ctx, chatID, post)
		if err != nil {
			return nil, err
		}
		return []int64{id}, nil
	default:
		params := map[string]any{"chat_id": chatID, "text": post.Text}
		if kb := inlineKeyboard(post); kb != nil {
			params["reply_markup"] = kb
		}
		var msg message
		if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
			return nil, err
		}
		return []int64{msg.MessageID}, nil
	}
}

func (c *Client) sendSingleMedia(ctx context.Context, chatID int64, post Post) (int64, error) {
	method := "sendPhoto"
	field := "photo"
	if post.MediaType == "video" {
		method = "sendVideo"
		field = "video"
	}
	params := map[string]any{
		"chat_id": chatID,
		field:     post.MediaFileIDs[0],
		"caption": post.Text,
	}
	if kb := inlineKeyboard(post); kb != nil {
		params["reply_markup"] = kb
	}
	var msg message
	if err := c.call(ctx, method, params, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

func (c *Client) sendMediaGroup(ctx context.Context, chatID int64, post Post) ([]int64, error) {
	media := make([]map[string]any, 0, len(post.MediaFileIDs))
	for i, fileID := range post.MediaFileIDs {
		item := map[string]any{"type": "photo", "media": fileID}
		if post.MediaType == "video" {
			item["type"] = "video"
		}
		// Caption rides on the first item only.
		if i == 0 && post.Text != "" {
			item["caption"] = post.Text
		}
		media = append(media, item)
	}

	params := map[string]any{"chat_id": chatID, "media": media}
	var msgs []message
	if err := c.call(ctx, "sendMediaGroup", params, &msgs); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.MessageID)
	}
	return ids, nil
}

func (c *Client) CopyMessage(ctx context.Context, toChatID, fromChatID, messageID int64) (int64, error) {
	params := map[string]any{
		"chat_id":      toChatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}
	var msg message
	if err := c.call(ctx, "copyMessage", params, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

// ProbeMessage checks a message still exists without touching it: copy
// into the probe chat, then immediately delete the copy. Cleanup
// failures only leave a stray message in the service chat.
func (c *Client) ProbeMessage(ctx context.Context, probeChatID, chatID, messageID int64) (bool, error) {
	copiedID, err := c.CopyMessage(ctx, probeChatID, chatID, messageID)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if delErr := c.DeleteMessage(ctx, probeChatID, copiedID); delErr != nil {
		c.log.Warn("failed to clean up probe copy",
			zap.Int64("probe_chat_id", probeChatID),
			zap.Int64("message_id", copiedID),
			zap.Error(delErr),
		)
	}
	return true, nil
}

func inlineKeyboard(post Post) map[string]any {
	if post.ButtonText == "" || post.ButtonURL == "" {
		return nil
	}
	return map[string]any{
		"inline_keyboard": [][]map[string]string{
			{{"text": post.ButtonText, "url": post.ButtonURL}},
		},
	}
}
