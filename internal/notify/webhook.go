package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	logx "cytosched/pkg/logx"
)

// ErrTransport marks a failed webhook call. Sends are best effort: the
// error is reported to the caller and logged, never retried here.
var ErrTransport = errors.New("notify transport failure")

// The robot webhook endpoint shape is fixed by the messaging platform.
const webhookPrefix = "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key="

const sendTimeout = 10 * time.Second

// ValidateWebhookURL checks the robot webhook address shape.
func ValidateWebhookURL(u string) error {
	if strings.TrimSpace(u) == "" {
		return errors.New("webhook url must not be empty")
	}
	if !strings.HasPrefix(u, webhookPrefix) {
		return errors.New("webhook url must be a 企业微信 robot address")
	}
	return nil
}

// Webhook posts messages to one robot webhook.
type Webhook struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func NewWebhook(url string, log logx.Logger) *Webhook {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: sendTimeout},
		// The platform throttles robots to ~20 messages/min; stay under it
		// when a long report splits into several parts.
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
		log:     log,
	}
}

type textPayload struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

type markdownPayload struct {
	MsgType  string `json:"msgtype"`
	Markdown struct {
		Content string `json:"content"`
	} `json:"markdown"`
}

type apiResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// SendText pushes one plain text message.
func (w *Webhook) SendText(ctx context.Context, content string) error {
	var p textPayload
	p.MsgType = "text"
	p.Text.Content = content
	return w.post(ctx, p)
}

// SendMarkdown pushes one markdown message.
func (w *Webhook) SendMarkdown(ctx context.Context, content string) error {
	var p markdownPayload
	p.MsgType = "markdown"
	p.Markdown.Content = content
	return w.post(ctx, p)
}

func (w *Webhook) post(ctx context.Context, payload any) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.log.Warn("webhook post failed", logx.Err(err))
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		w.log.Warn("webhook rejected", logx.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}
	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}
	if ar.ErrCode != 0 {
		w.log.Warn("webhook api error", logx.Int("errcode", ar.ErrCode), logx.String("errmsg", ar.ErrMsg))
		return fmt.Errorf("%w: errcode %d: %s", ErrTransport, ar.ErrCode, ar.ErrMsg)
	}
	return nil
}

// SendReport delivers a possibly oversized markdown report. Long
// reports split into sequential parts, each labeled with its index,
// followed by a closing summary once every part went through.
func (w *Webhook) SendReport(ctx context.Context, content string) error {
	parts := splitContent(content, maxMessageLen-partLabelHeadroom)
	if len(parts) == 1 {
		return w.SendMarkdown(ctx, parts[0])
	}
	for i, part := range parts {
		labeled := fmt.Sprintf("【第%d/%d部分】\n%s", i+1, len(parts), part)
		if err := w.SendMarkdown(ctx, labeled); err != nil {
			return err
		}
	}
	return w.SendText(ctx, fmt.Sprintf("今日实验安排推送完毕，共%d部分。", len(parts)))
}

// TestConnection sends a throwaway message so operators can verify the
// webhook address before enabling the daily push.
func (w *Webhook) TestConnection(ctx context.Context) error {
	content := "🧪 细胞毒实验排班系统 - 连接测试成功！\n\n发送时间: " + time.Now().Format("2006-01-02 15:04:05")
	return w.SendText(ctx, content)
}
