package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Vovarama1992/support-relay/internal/config"
	"github.com/Vovarama1992/support-relay/internal/logger"
	"github.com/Vovarama1992/support-relay/internal/models"
)

var (
	ErrNotConfigured  = errors.New("chatwoot: base url or token missing")
	ErrNoConversation = errors.New("chatwoot: account or conversation id missing")
	ErrNotAllowed     = errors.New("chatwoot: account/inbox not in allow-list")
)

// Client posts replies into Chatwoot conversations.
type Client struct {
	baseURL string
	token   string
	allowed []config.AccountInbox
	client  *http.Client
	log     *logger.Logger
}

func NewClient(baseURL, token string, allowed []config.AccountInbox, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		allowed: allowed,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With("component", "chatwoot"),
	}
}

// Allowed applies the allow-list: with an inbox the exact pair must be
// listed, without one any pair for the account will do. An empty list
// allows everything.
func (c *Client) Allowed(accountID int64, inboxID *int64) bool {
	if len(c.allowed) == 0 {
		return true
	}
	for _, p := range c.allowed {
		if p.AccountID != accountID {
			continue
		}
		if inboxID == nil || p.InboxID == *inboxID {
			return true
		}
	}
	return false
}

func (c *Client) Send(ctx context.Context, addr models.Address, text string) error {
	if text == "" {
		return nil
	}
	return c.post(ctx, addr, map[string]any{
		"content":      text,
		"message_type": "outgoing",
		"private":      false,
		"content_type": "text",
	})
}

// SendWithButton appends the link to the text; plain conversations have no
// button widget.
func (c *Client) SendWithButton(ctx context.Context, addr models.Address, text, label, url string) error {
	return c.Send(ctx, addr, text+"\n\n"+label+": "+url)
}

// SendKeyboard uses the input_select message type.
func (c *Client) SendKeyboard(ctx context.Context, addr models.Address, prompt string, options []models.KeyboardOption) error {
	items := make([]map[string]string, 0, len(options))
	for _, o := range options {
		items = append(items, map[string]string{"title": o.Label, "value": o.Data})
	}
	return c.post(ctx, addr, map[string]any{
		"content":            prompt,
		"message_type":       "outgoing",
		"private":            false,
		"content_type":       "input_select",
		"content_attributes": map[string]any{"items": items},
	})
}

func (c *Client) post(ctx context.Context, addr models.Address, body any) error {
	if c.baseURL == "" || c.token == "" {
		return ErrNotConfigured
	}
	if addr.AccountID == nil || addr.ConversationID == nil {
		return ErrNoConversation
	}
	if !c.Allowed(*addr.AccountID, addr.InboxID) {
		c.log.Debug("reply skipped by allow-list", "account_id", *addr.AccountID, "inbox_id", addr.InboxID)
		return ErrNotAllowed
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/api/v1/accounts/%d/conversations/%d/messages", c.baseURL, *addr.AccountID, *addr.ConversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api_access_token", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("chatwoot api error: %s body=%s", resp.Status, respBody)
	}
	return nil
}
