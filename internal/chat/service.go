// Package chat runs a chat turn: persist, remember, assemble, call the model, persist.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/companion/internal/emotion"
	"github.com/easeaico/companion/internal/memory"
	"github.com/easeaico/companion/internal/models"
	"github.com/easeaico/companion/internal/prompt"
	"github.com/easeaico/companion/internal/types"
)

var (
	ErrEmptyMessage = errors.New("message is required")
	// ErrReplyUnavailable is the generic, retryable failure shown to users
	// when the model call or its reply fails.
	ErrReplyUnavailable = errors.New("failed to generate reply, please try again")
	ErrMessageNotFound  = errors.New("message not found")
	ErrForbidden        = errors.New("not allowed to modify this message")
)

const historyPageSize = 50

// CompanionSource resolves the companion a user talks to.
type CompanionSource interface {
	Get(ctx context.Context, userID string) (*types.Companion, error)
}

// ConversationRepo persists conversations.
type ConversationRepo interface {
	GetOrCreateActive(ctx context.Context, userID, companionID string) (*types.Conversation, error)
	GetByID(ctx context.Context, id string) (*types.Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]types.Conversation, error)
	RecordTurn(ctx context.Context, id string) error
	RecordDeletions(ctx context.Context, id string, n int) error
}

// MessageRepo persists conversation turns.
type MessageRepo interface {
	Create(ctx context.Context, msg *types.Message) error
	GetByID(ctx context.Context, id string) (*types.Message, error)
	GetRecent(ctx context.Context, conversationID string, limit int, excludeID string) ([]types.Message, error)
	ListAll(ctx context.Context, conversationID string) ([]types.Message, error)
	MarkHasReplies(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id, deletedBy string) (bool, error)
	SoftDeleteAll(ctx context.Context, conversationID, deletedBy string) (int, error)
}

// MemoryRecorder stores memories extracted from user messages.
type MemoryRecorder interface {
	Record(ctx context.Context, req memory.RecordRequest) (*types.Memory, error)
}

// Options are the model call parameters.
type Options struct {
	Model        string
	Temperature  float32
	MaxTokens    int32
	HistoryLimit int
}

// Deps wires the service to its collaborators.
type Deps struct {
	Companions    CompanionSource
	Conversations ConversationRepo
	Messages      MessageRepo
	Memories      MemoryRecorder
	LLM           model.LLM
}

// Service orchestrates chat turns. It holds no per-request state.
type Service struct {
	deps    Deps
	builder *prompt.Builder
	opts    Options
}

// NewService creates a chat Service.
func NewService(deps Deps, opts Options) *Service {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = prompt.DefaultHistoryLimit
	}
	return &Service{
		deps:    deps,
		builder: prompt.NewBuilder(opts.HistoryLimit),
		opts:    opts,
	}
}

// SendRequest is one user message, optionally replying to an earlier turn.
type SendRequest struct {
	UserID    string
	Message   string
	ReplyToID string
}

// SendResult holds both persisted turns.
type SendResult struct {
	ConversationID   string
	UserMessage      types.Message
	AssistantMessage types.Message
	Memory           *types.Memory
}

// Send runs one chat turn.
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	companion, err := s.deps.Companions.Get(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load companion: %w", err)
	}
	conv, err := s.deps.Conversations.GetOrCreateActive(ctx, req.UserID, companion.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	replyTo := s.resolveReply(ctx, conv.ID, req.ReplyToID)

	userMsg := newMessage(conv.ID, types.RoleUser, text)
	if replyTo != nil {
		userMsg.ReplyToID = replyTo.ID
	}
	if err := s.deps.Messages.Create(ctx, &userMsg); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	var (
		mem    *types.Memory
		recent []types.Message
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Best effort: a memory failure never blocks the reply. Runs on ctx,
		// not gctx, so a failed history load does not cancel the write.
		m, err := s.deps.Memories.Record(ctx, memory.RecordRequest{
			UserID:      req.UserID,
			CompanionID: companion.ID,
			MessageID:   userMsg.ID,
			Text:        text,
		})
		if err != nil {
			slog.Error("failed to record memory", "user_id", req.UserID, "message_id", userMsg.ID, "error", err.Error())
			return nil
		}
		mem = m
		return nil
	})
	g.Go(func() error {
		turns, err := s.deps.Messages.GetRecent(gctx, conv.ID, s.opts.HistoryLimit, userMsg.ID)
		if err != nil {
			return fmt.Errorf("failed to load recent messages: %w", err)
		}
		recent = turns
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	input := prompt.Input{
		Companion:   companion,
		RecentTurns: recent,
		NewMessage:  text,
	}
	if replyTo != nil {
		input.Reply = &prompt.ReplyContext{OriginalContent: replyTo.Content, Role: replyTo.Role}
	}
	p, err := s.builder.Build(input)
	if err != nil {
		slog.Error("failed to assemble prompt", "user_id", req.UserID, "companion_id", companion.ID, "error", err.Error())
		return nil, fmt.Errorf("failed to assemble prompt: %w", err)
	}

	reply, err := s.generate(ctx, p)
	if err != nil {
		slog.Error("failed to generate reply", "user_id", req.UserID, "conversation_id", conv.ID, "error", err.Error())
		return nil, fmt.Errorf("%w: %w", ErrReplyUnavailable, err)
	}

	aiMsg := newMessage(conv.ID, types.RoleAssistant, reply)
	aiMsg.ReplyToID = userMsg.ID
	if err := s.deps.Messages.Create(ctx, &aiMsg); err != nil {
		return nil, fmt.Errorf("failed to save reply: %w", err)
	}

	if err := s.deps.Conversations.RecordTurn(ctx, conv.ID); err != nil {
		slog.Warn("failed to update conversation stats", "conversation_id", conv.ID, "error", err.Error())
	}
	if replyTo != nil {
		if err := s.deps.Messages.MarkHasReplies(ctx, replyTo.ID); err != nil {
			slog.Warn("failed to mark message replied", "message_id", replyTo.ID, "error", err.Error())
		}
	}

	slog.Info("chat turn completed",
		"user_id", req.UserID,
		"conversation_id", conv.ID,
		"history_turns", len(recent),
		"memory_stored", mem != nil)

	return &SendResult{
		ConversationID:   conv.ID,
		UserMessage:      userMsg,
		AssistantMessage: aiMsg,
		Memory:           mem,
	}, nil
}

func (s *Service) generate(ctx context.Context, p prompt.Prompt) (string, error) {
	temperature := s.opts.Temperature
	req := &model.LLMRequest{
		Model:    s.opts.Model,
		Contents: p.Contents(),
		Config: &genai.GenerateContentConfig{
			Temperature:     &temperature,
			MaxOutputTokens: s.opts.MaxTokens,
		},
	}
	resp, err := models.Generate(ctx, s.deps.LLM, req)
	if err != nil {
		return "", err
	}
	return prompt.ParseReply(models.Text(resp))
}

// resolveReply returns the replied-to message when it belongs to the
// conversation. Unknown IDs are ignored.
func (s *Service) resolveReply(ctx context.Context, conversationID, replyToID string) *types.Message {
	if replyToID == "" {
		return nil
	}
	msg, err := s.deps.Messages.GetByID(ctx, replyToID)
	if err != nil {
		slog.Warn("failed to load reply context", "message_id", replyToID, "error", err.Error())
		return nil
	}
	if msg == nil || msg.ConversationID != conversationID || msg.IsDeleted {
		slog.Debug("ignoring unknown reply target", "message_id", replyToID)
		return nil
	}
	return msg
}

func newMessage(conversationID string, role types.Role, content string) types.Message {
	return types.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		WordCount:      len(strings.Fields(content)),
		CharacterCount: utf8.RuneCountInString(content),
		Sentiment:      string(emotion.Sentiment(content)),
	}
}

// History is the visible tail of the active conversation.
type History struct {
	ConversationID string
	Companion      *types.Companion
	Messages       []types.Message
}

// History returns the last visible messages, oldest first.
func (s *Service) History(ctx context.Context, userID string) (*History, error) {
	companion, err := s.deps.Companions.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load companion: %w", err)
	}
	conv, err := s.deps.Conversations.GetOrCreateActive(ctx, userID, companion.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	msgs, err := s.deps.Messages.GetRecent(ctx, conv.ID, historyPageSize, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return &History{ConversationID: conv.ID, Companion: companion, Messages: msgs}, nil
}

// DeleteMessage soft-deletes one of the user's messages.
func (s *Service) DeleteMessage(ctx context.Context, userID, messageID string) error {
	msg, err := s.deps.Messages.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("failed to load message: %w", err)
	}
	if msg == nil || msg.IsDeleted {
		return ErrMessageNotFound
	}
	conv, err := s.deps.Conversations.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil || conv.UserID != userID {
		return ErrForbidden
	}

	ok, err := s.deps.Messages.SoftDelete(ctx, messageID, types.DeletedByUser)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMessageNotFound
	}
	if err := s.deps.Conversations.RecordDeletions(ctx, conv.ID, 1); err != nil {
		slog.Warn("failed to update conversation stats", "conversation_id", conv.ID, "error", err.Error())
	}
	slog.Info("message deleted", "user_id", userID, "message_id", messageID)
	return nil
}

// ClearHistory soft-deletes every visible message the user has and returns the count.
func (s *Service) ClearHistory(ctx context.Context, userID string) (int, error) {
	convs, err := s.deps.Conversations.ListByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list conversations: %w", err)
	}
	total := 0
	for _, conv := range convs {
		n, err := s.deps.Messages.SoftDeleteAll(ctx, conv.ID, types.DeletedByUser)
		if err != nil {
			return total, err
		}
		total += n
		if err := s.deps.Conversations.RecordDeletions(ctx, conv.ID, n); err != nil {
			slog.Warn("failed to update conversation stats", "conversation_id", conv.ID, "error", err.Error())
		}
	}
	slog.Info("chat history cleared", "user_id", userID, "deleted", total)
	return total, nil
}

// Transcript is a full export of the user's latest conversation.
type Transcript struct {
	ExportedAt    time.Time           `json:"exported_at"`
	CompanionName string              `json:"companion_name"`
	Conversation  *TranscriptInfo     `json:"conversation,omitempty"`
	Messages      []TranscriptMessage `json:"messages"`
}

type TranscriptInfo struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	MessageCount int       `json:"message_count"`
}

type TranscriptMessage struct {
	ID             string     `json:"id"`
	Role           types.Role `json:"role"`
	Content        string     `json:"content"`
	Timestamp      time.Time  `json:"timestamp"`
	WordCount      int        `json:"word_count"`
	CharacterCount int        `json:"character_count"`
	IsDeleted      bool       `json:"is_deleted"`
}

// Export returns every turn of the user's most recent conversation, deleted ones included.
func (s *Service) Export(ctx context.Context, userID string) (*Transcript, error) {
	companion, err := s.deps.Companions.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load companion: %w", err)
	}
	out := &Transcript{
		ExportedAt:    time.Now().UTC(),
		CompanionName: companion.Name,
		Messages:      []TranscriptMessage{},
	}

	convs, err := s.deps.Conversations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	var conv *types.Conversation
	for i := range convs {
		if convs[i].CompanionID == companion.ID {
			conv = &convs[i]
			break
		}
	}
	if conv == nil {
		return out, nil
	}

	msgs, err := s.deps.Messages.ListAll(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	out.Conversation = &TranscriptInfo{ID: conv.ID, StartedAt: conv.CreatedAt, MessageCount: len(msgs)}
	for _, m := range msgs {
		out.Messages = append(out.Messages, TranscriptMessage{
			ID:             m.ID,
			Role:           m.Role,
			Content:        m.Content,
			Timestamp:      m.CreatedAt,
			WordCount:      m.WordCount,
			CharacterCount: m.CharacterCount,
			IsDeleted:      m.IsDeleted,
		})
	}
	return out, nil
}
