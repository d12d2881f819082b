// Package lark posts operator alerts to a Lark (Feishu) bot webhook.
package lark

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
	"time"

	"github.com/Vovarama1992/support-relay/internal/logger"
	"github.com/Vovarama1992/support-relay/internal/models"
)

const maxContentRunes = 300

type Client struct {
	webhookURL string
	client     *http.Client
	log        *logger.Logger
}

func NewClient(webhookURL string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log.With("component", "lark"),
	}
}

// Escalate sends the help alert for msg. Without a webhook URL it does
// nothing.
func (c *Client) Escalate(ctx context.Context, msg models.InboundMessage) error {
	if c.webhookURL == "" {
		return nil
	}
	payload := map[string]any{
		"msg_type": "text",
		"content":  map[string]string{"text": HelpAlertText(msg)},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// The hook path is the bot's secret.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("lark alert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("lark alert: status=%d body=%s", resp.StatusCode, body)
	}
	c.log.Info("help alert sent", "chatroom_id", msg.ChatHandle)
	return nil
}

func HelpAlertText(msg models.InboundMessage) string {
	name := msg.DisplayName
	if name == "" {
		name = "未知"
	}
	content := []rune(msg.Text)
	if len(content) > maxContentRunes {
		content = content[:maxContentRunes]
	}
	return fmt.Sprintf("人工接入提醒\n用户: %s\n会话ID: %s\n账户ID: %s\n聊天ID: %s\n请求内容: %s",
		name, optInt(msg.ConversationID), optInt(msg.AccountID), msg.ChatHandle, string(content))
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
