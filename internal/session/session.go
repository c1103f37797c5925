package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"assignflow/internal/chat"
	"assignflow/internal/config"
	"assignflow/internal/contextmgr"
	"assignflow/internal/provider"
	"assignflow/internal/tools"
)

// ErrBusy 上一次请求仍在进行
// ErrBusy reports that a previous request is still in flight
var ErrBusy = errors.New("assistant is busy")

// EventKind 会话事件类型
// EventKind enumerates session event types
type EventKind int

const (
	EventTextChunk EventKind = iota
	EventToolStart
	EventToolResult
	EventContextUpdate
	EventDone
	EventCancelled
	EventFailed
)

// Event 会话推送给前端的事件；Ask 返回的通道按发生顺序投递，
// 终态事件（Done/Cancelled/Failed）之后通道关闭。
// Event is pushed to the frontend in order; the channel closes after a
// terminal event (Done, Cancelled or Failed).
type Event struct {
	Kind   EventKind
	Text   string // TextChunk 增量或 Done 的完整回答 / chunk, or final answer on Done
	Tool   string // ToolStart/ToolResult 的工具名 / tool name
	Detail string // 工具参数或结果摘要 / tool args or result summary
	Tokens int
	Limit  int
	Err    error // Failed 的原因 / failure cause
}

// ContextFunc 返回注入 system prompt 的实时状态描述
// ContextFunc returns the live-state block injected into the system prompt
type ContextFunc func() string

// Session 串起 provider、工具注册表与对话历史的助手会话。
// 同一时刻只允许一个在途请求；可变工具成功后触发 onStateChanged。
// Session wires the provider, tool registry and conversation history.
// A single request may be in flight at a time; onStateChanged fires after
// each successful mutating tool.
type Session struct {
	provider       provider.Provider
	registry       *tools.Registry
	cfg            config.AssistantConfig
	liveContext    ContextFunc
	onStateChanged func()

	mu      sync.Mutex
	history []chat.Message
	busy    bool
	cancel  context.CancelFunc
}

// Option 配置 Session
// Option configures a Session
type Option func(*Session)

// WithLiveContext 注入实时状态提供函数
// WithLiveContext injects the live-state provider
func WithLiveContext(fn ContextFunc) Option {
	return func(s *Session) { s.liveContext = fn }
}

// WithStateChanged 注入可变工具成功后的回调
// WithStateChanged injects the callback fired after mutating tools succeed
func WithStateChanged(fn func()) Option {
	return func(s *Session) { s.onStateChanged = fn }
}

func New(p provider.Provider, registry *tools.Registry, cfg config.AssistantConfig, opts ...Option) *Session {
	s := &Session{
		provider: p,
		registry: registry,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask 提交一条用户输入并返回事件通道。正在处理时返回 ErrBusy。
// Ask submits one user input and returns the event channel. Returns
// ErrBusy while a previous request is still running.
func (s *Session) Ask(ctx context.Context, input string) (<-chan Event, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty input")
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.busy = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	snapshot := len(s.history)
	s.history = append(s.history, chat.Message{Role: "user", Content: input})
	s.mu.Unlock()

	events := make(chan Event, 32)
	go func() {
		defer close(events)
		defer func() {
			s.mu.Lock()
			s.busy = false
			s.cancel = nil
			s.mu.Unlock()
			cancel()
		}()
		s.run(runCtx, snapshot, events)
	}()
	return events, nil
}

// Cancel 中止在途请求；历史回滚到本次提交之前
// Cancel aborts the in-flight request; history rolls back to the
// pre-submit snapshot.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Busy 返回是否有在途请求
// Busy reports whether a request is in flight
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Reset 清空对话历史
// Reset clears the conversation history
func (s *Session) Reset() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

// History 返回对话历史副本
// History returns a copy of the conversation history
func (s *Session) History() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Message, len(s.history))
	copy(out, s.history)
	return out
}

// TokenEstimate 估算当前上下文的 token 占用
// TokenEstimate estimates the current context token footprint
func (s *Session) TokenEstimate() (tokens, limit int) {
	msgs := s.buildMessages()
	return contextmgr.EstimateTokens(msgs), s.tokenLimit()
}

func (s *Session) tokenLimit() int {
	if s.cfg.ContextTokenLimit > 0 {
		return s.cfg.ContextTokenLimit
	}
	return 24000
}

func (s *Session) maxRounds() int {
	if s.cfg.MaxRounds > 0 {
		return s.cfg.MaxRounds
	}
	return 8
}

func (s *Session) buildMessages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	liveBlock := ""
	if s.cfg.IncludeContext && s.liveContext != nil {
		liveBlock = s.liveContext()
	}
	out := make([]chat.Message, 0, len(s.history)+1)
	out = append(out, chat.Message{Role: "system", Content: systemPrompt(liveBlock)})
	out = append(out, s.history...)
	return out
}

func (s *Session) appendMessage(msg chat.Message) {
	s.mu.Lock()
	s.history = append(s.history, msg)
	s.mu.Unlock()
}

func (s *Session) rollback(snapshot int) {
	s.mu.Lock()
	if snapshot <= len(s.history) {
		s.history = s.history[:snapshot]
	}
	s.mu.Unlock()
}

func (s *Session) emitContext(events chan<- Event) {
	tokens, limit := s.TokenEstimate()
	events <- Event{Kind: EventContextUpdate, Tokens: tokens, Limit: limit}
}

func (s *Session) run(ctx context.Context, snapshot int, events chan<- Event) {
	s.emitContext(events)

	var finalText string
	for round := 0; round < s.maxRounds(); round++ {
		if ctx.Err() != nil {
			s.rollback(snapshot)
			events <- Event{Kind: EventCancelled}
			return
		}

		resp, err := s.provider.Chat(ctx, provider.ChatRequest{
			Messages: s.buildMessages(),
			Tools:    s.registry.Definitions(),
		}, &provider.StreamCallbacks{
			OnTextChunk: func(chunk string) {
				if chunk != "" {
					events <- Event{Kind: EventTextChunk, Text: chunk}
				}
			},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				s.rollback(snapshot)
				events <- Event{Kind: EventCancelled}
				return
			}
			// 已提交的轮次保留，便于后续追问 / Committed rounds stay so the
			// user can follow up
			events <- Event{Kind: EventFailed, Err: fmt.Errorf("provider chat: %w", err)}
			return
		}

		s.appendMessage(chat.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
		if resp.Content != "" {
			finalText = resp.Content
		}
		s.emitContext(events)

		if len(resp.ToolCalls) == 0 {
			events <- Event{Kind: EventDone, Text: finalText}
			return
		}

		for _, call := range resp.ToolCalls {
			if ctx.Err() != nil {
				s.rollback(snapshot)
				events <- Event{Kind: EventCancelled}
				return
			}
			name := call.Function.Name
			events <- Event{Kind: EventToolStart, Tool: name, Detail: summarizeArgs(call.Function.Arguments)}

			result, err := s.registry.Execute(ctx, name, json.RawMessage(call.Function.Arguments))
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					s.rollback(snapshot)
					events <- Event{Kind: EventCancelled}
					return
				}
				// 错误写回模型，让它自行纠正 / Feed the error back so the
				// model can correct itself
				result = "错误: " + err.Error()
			} else if s.registry.IsMutating(name) && s.onStateChanged != nil {
				s.onStateChanged()
			}
			events <- Event{Kind: EventToolResult, Tool: name, Detail: summarizeResult(result)}
			s.appendMessage(chat.Message{
				Role:       "tool",
				Name:       name,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}

	events <- Event{Kind: EventFailed, Err: fmt.Errorf("tool round limit reached (%d)", s.maxRounds())}
}

const summaryLimit = 120

func summarizeArgs(args string) string {
	return truncate(strings.TrimSpace(args), summaryLimit)
}

func summarizeResult(result string) string {
	return truncate(strings.TrimSpace(result), summaryLimit)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
