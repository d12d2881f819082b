package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Vovarama1992/support-relay/internal/logger"
	"github.com/Vovarama1992/support-relay/internal/models"
)

const DefaultAPIBase = "https://api.telegram.org"

var (
	ErrNoToken  = errors.New("telegram: bot token is not configured")
	ErrBadChat  = errors.New("telegram: chat id is not numeric")
	chatIDRegex = regexp.MustCompile(`-?\d+`)
)

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

// Client is the outbound Bot API sink.
type Client struct {
	token   string
	apiBase string
	client  *http.Client
	log     *logger.Logger
}

func NewClient(token, apiBase string, log *logger.Logger) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		token:   token,
		apiBase: strings.TrimRight(apiBase, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With("component", "telegram"),
	}
}

// ChatID takes the first integer found in a chat handle. Helpdesk chats
// store handles like "tg:123456".
func ChatID(handle string) (int64, error) {
	m := chatIDRegex.FindString(handle)
	if m == "" {
		return 0, ErrBadChat
	}
	return strconv.ParseInt(m, 10, 64)
}

func (c *Client) Send(ctx context.Context, addr models.Address, text string) error {
	if text == "" {
		return nil
	}
	chatID, err := ChatID(addr.ChatHandle)
	if err != nil {
		return err
	}
	return c.call(ctx, "sendMessage", map[string]any{"chat_id": chatID, "text": text})
}

func (c *Client) SendWithButton(ctx context.Context, addr models.Address, text, label, url string) error {
	chatID, err := ChatID(addr.ChatHandle)
	if err != nil {
		return err
	}
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
		"reply_markup": replyMarkup{InlineKeyboard: [][]inlineButton{
			{{Text: label, URL: url}},
		}},
	})
}

// SendKeyboard lays the options out on one row of callback buttons.
func (c *Client) SendKeyboard(ctx context.Context, addr models.Address, prompt string, options []models.KeyboardOption) error {
	chatID, err := ChatID(addr.ChatHandle)
	if err != nil {
		return err
	}
	row := make([]inlineButton, 0, len(options))
	for _, o := range options {
		row = append(row, inlineButton{Text: o.Label, CallbackData: o.Data})
	}
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id":      chatID,
		"text":         prompt,
		"reply_markup": replyMarkup{InlineKeyboard: [][]inlineButton{row}},
	})
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if callbackID == "" {
		return nil
	}
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
		payload["show_alert"] = false
	}
	return c.call(ctx, "answerCallbackQuery", payload)
}

// SetWebhook points the bot at url. An empty url is a no-op.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	if err := c.call(ctx, "setWebhook", map[string]any{"url": url}); err != nil {
		return err
	}
	c.log.Info("telegram webhook registered", "url", url)
	return nil
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	if c.token == "" {
		return ErrNoToken
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// The request URL embeds the bot token.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram %s: status=%d body=%s", method, resp.StatusCode, truncate(body, 200))
	}
	if ok := gjson.GetBytes(body, "ok"); ok.Exists() && !ok.Bool() {
		return fmt.Errorf("telegram %s: %s", method, gjson.GetBytes(body, "description").String())
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
