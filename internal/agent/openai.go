package agent

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/Vovarama1992/support-relay/internal/logger"
)

const (
	DefaultOpenAIModel = openai.GPT4oMini
	maxThreadHistory   = 20
	maxThreads         = 512
	openAITimeout      = 60 * time.Second
	threadIdleTTL      = 7 * 24 * time.Hour
)

const openAISystemPrompt = `你是体育赛事预测平台的客服助手。
用简体中文简洁回答用户问题，不要编造比赛结果或预测数据。
遇到无法处理的问题，建议用户输入 /help 联系人工客服。`

type localThread struct {
	msgs    []openai.ChatCompletionMessage
	touched time.Time
}

// OpenAIAgent answers through the chat completions API. Threads are local:
// each keeps a bounded history that is replayed on the next call. Idle
// threads are dropped, and at most maxThreads are kept.
type OpenAIAgent struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     *logger.Logger
	now     func() time.Time

	mu         sync.Mutex
	threads    map[string]*localThread
	maxThreads int
}

// NewOpenAIAgent builds the agent; baseURL overrides the API host when set.
func NewOpenAIAgent(apiKey, model, baseURL string, log *logger.Logger) *OpenAIAgent {
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: openAITimeout}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OpenAIAgent{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		timeout:    openAITimeout,
		log:        log.With("component", "openai_agent"),
		now:        time.Now,
		threads:    make(map[string]*localThread),
		maxThreads: maxThreads,
	}
}

func (a *OpenAIAgent) CreateThread(ctx context.Context, meta map[string]any) (string, error) {
	id := uuid.NewString()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.evictLocked()
	a.threads[id] = &localThread{touched: a.now()}
	return id, nil
}

func (a *OpenAIAgent) Call(ctx context.Context, req Request) (Result, error) {
	text := req.LastUserText()
	if text == "" {
		return Result{}, fmt.Errorf("openai agent: empty message")
	}

	history := a.history(req.ThreadID)
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: openAISystemPrompt})
	msgs = append(msgs, history...)
	userMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text}
	msgs = append(msgs, userMsg)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: msgs,
	})
	if err != nil {
		a.log.Error("openai completion failed", "error", err, "thread_id", req.ThreadID)
		return Result{}, err
	}
	if len(resp.Choices) == 0 {
		a.log.Warn("openai returned no choices", "thread_id", req.ThreadID)
		return Result{}, fmt.Errorf("openai agent: empty choices")
	}

	reply := resp.Choices[0].Message.Content
	a.log.Debug("openai reply", "thread_id", req.ThreadID, "len", len(reply))
	a.remember(req.ThreadID, userMsg, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply})

	return Result{ThreadID: req.ThreadID, Reply: reply}, nil
}

func (a *OpenAIAgent) history(threadID string) []openai.ChatCompletionMessage {
	if threadID == "" {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	th := a.threads[threadID]
	if th == nil {
		return nil
	}
	out := make([]openai.ChatCompletionMessage, len(th.msgs))
	copy(out, th.msgs)
	return out
}

func (a *OpenAIAgent) remember(threadID string, msgs ...openai.ChatCompletionMessage) {
	if threadID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	th := a.threads[threadID]
	if th == nil {
		a.evictLocked()
		th = &localThread{}
		a.threads[threadID] = th
	}
	h := append(th.msgs, msgs...)
	if len(h) > maxThreadHistory {
		h = h[len(h)-maxThreadHistory:]
	}
	th.msgs = h
	th.touched = a.now()
}

// evictLocked drops idle threads, then the least recently used ones until
// there is room for one more. Caller holds a.mu.
func (a *OpenAIAgent) evictLocked() {
	now := a.now()
	for id, th := range a.threads {
		if now.Sub(th.touched) > threadIdleTTL {
			delete(a.threads, id)
		}
	}
	for a.maxThreads > 0 && len(a.threads) >= a.maxThreads {
		var oldestID string
		var oldest time.Time
		for id, th := range a.threads {
			if oldestID == "" || th.touched.Before(oldest) {
				oldestID, oldest = id, th.touched
			}
		}
		delete(a.threads, oldestID)
	}
}
