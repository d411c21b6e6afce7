package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/companion/internal/memory"
	"github.com/easeaico/companion/internal/prompt"
	"github.com/easeaico/companion/internal/types"
)

type fakeCompanions struct {
	companion *types.Companion
}

func (f *fakeCompanions) Get(_ context.Context, userID string) (*types.Companion, error) {
	if f.companion != nil {
		return f.companion, nil
	}
	c := types.DefaultCompanion(userID)
	c.ID = "comp-1"
	return &c, nil
}

type fakeConversations struct {
	convs     map[string]*types.Conversation
	turns     int
	deletions int
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{convs: map[string]*types.Conversation{}}
}

func (f *fakeConversations) GetOrCreateActive(_ context.Context, userID, companionID string) (*types.Conversation, error) {
	for _, c := range f.convs {
		if c.UserID == userID && c.CompanionID == companionID && c.IsActive {
			return c, nil
		}
	}
	c := &types.Conversation{ID: fmt.Sprintf("conv-%s", userID), UserID: userID, CompanionID: companionID, IsActive: true}
	f.convs[c.ID] = c
	return c, nil
}

func (f *fakeConversations) GetByID(_ context.Context, id string) (*types.Conversation, error) {
	return f.convs[id], nil
}

func (f *fakeConversations) ListByUser(_ context.Context, userID string) ([]types.Conversation, error) {
	var out []types.Conversation
	for _, c := range f.convs {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeConversations) RecordTurn(_ context.Context, _ string) error {
	f.turns++
	return nil
}

func (f *fakeConversations) RecordDeletions(_ context.Context, _ string, n int) error {
	f.deletions += n
	return nil
}

type fakeMessages struct {
	mu        sync.Mutex
	msgs      []*types.Message
	clock     time.Time
	replied   []string
	recentErr error
	// recentDone, when set, is closed once GetRecent returns its error.
	recentDone chan struct{}
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{clock: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeMessages) Create(_ context.Context, msg *types.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(time.Second)
	msg.ID = fmt.Sprintf("msg-%d", len(f.msgs)+1)
	msg.CreatedAt = f.clock
	stored := *msg
	f.msgs = append(f.msgs, &stored)
	return nil
}

func (f *fakeMessages) GetByID(_ context.Context, id string) (*types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.ID == id {
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeMessages) GetRecent(_ context.Context, conversationID string, limit int, excludeID string) ([]types.Message, error) {
	if f.recentErr != nil {
		if f.recentDone != nil {
			defer close(f.recentDone)
		}
		return nil, f.recentErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Message
	for i := len(f.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		m := f.msgs[i]
		if m.ConversationID != conversationID || m.IsDeleted || m.ID == excludeID {
			continue
		}
		out = append(out, *m)
	}
	// Oldest -> newest
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (f *fakeMessages) ListAll(_ context.Context, conversationID string) ([]types.Message, error) {
	var out []types.Message
	for _, m := range f.msgs {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessages) MarkHasReplies(_ context.Context, id string) error {
	f.replied = append(f.replied, id)
	return nil
}

func (f *fakeMessages) SoftDelete(_ context.Context, id, deletedBy string) (bool, error) {
	for _, m := range f.msgs {
		if m.ID == id && !m.IsDeleted {
			m.IsDeleted = true
			m.DeletedBy = deletedBy
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMessages) SoftDeleteAll(_ context.Context, conversationID, deletedBy string) (int, error) {
	n := 0
	for _, m := range f.msgs {
		if m.ConversationID == conversationID && !m.IsDeleted {
			m.IsDeleted = true
			m.DeletedBy = deletedBy
			n++
		}
	}
	return n, nil
}

type fakeMemories struct {
	err      error
	requests []memory.RecordRequest
	// before runs ahead of recording and may block.
	before func(ctx context.Context)
	ctxErr error
}

func (f *fakeMemories) Record(ctx context.Context, req memory.RecordRequest) (*types.Memory, error) {
	if f.before != nil {
		f.before(ctx)
	}
	f.ctxErr = ctx.Err()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	d := memory.Classify(req.Text)
	if !d.ShouldStore {
		return nil, nil
	}
	return &types.Memory{Content: d.Content, Importance: d.Importance, Category: d.Category}, nil
}

type fakeLLM struct {
	reply string
	err   error
	calls int
	last  *model.LLMRequest
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) GenerateContent(_ context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	f.calls++
	f.last = req
	return func(yield func(*model.LLMResponse, error) bool) {
		if f.err != nil {
			yield(nil, f.err)
			return
		}
		yield(&model.LLMResponse{Content: genai.NewContentFromText(f.reply, genai.RoleModel), TurnComplete: true}, nil)
	}
}

type fixture struct {
	svc   *Service
	comps *fakeCompanions
	convs *fakeConversations
	msgs  *fakeMessages
	mems  *fakeMemories
	llm   *fakeLLM
}

func newFixture() *fixture {
	f := &fixture{
		comps: &fakeCompanions{},
		convs: newFakeConversations(),
		msgs:  newFakeMessages(),
		mems:  &fakeMemories{},
		llm:   &fakeLLM{reply: "  Hey you! \n"},
	}
	f.svc = NewService(Deps{
		Companions:    f.comps,
		Conversations: f.convs,
		Messages:      f.msgs,
		Memories:      f.mems,
		LLM:           f.llm,
	}, Options{Model: "grok-3-fast", Temperature: 0.8, MaxTokens: 800, HistoryLimit: 20})
	return f
}

func TestSendPersistsBothTurns(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Send(context.Background(), SendRequest{UserID: "u1", Message: "  My favorite food is ramen  "})
	require.NoError(t, err)

	assert.Equal(t, "conv-u1", res.ConversationID)
	assert.Equal(t, "My favorite food is ramen", res.UserMessage.Content)
	assert.Equal(t, 5, res.UserMessage.WordCount)
	assert.Equal(t, "Hey you!", res.AssistantMessage.Content)
	assert.Equal(t, types.RoleAssistant, res.AssistantMessage.Role)
	assert.Equal(t, res.UserMessage.ID, res.AssistantMessage.ReplyToID)
	require.NotNil(t, res.Memory)
	assert.Equal(t, 8, res.Memory.Importance)
	assert.Len(t, f.msgs.msgs, 2)
	assert.Equal(t, 1, f.convs.turns)

	require.Len(t, f.mems.requests, 1)
	assert.Equal(t, res.UserMessage.ID, f.mems.requests[0].MessageID)
	assert.Equal(t, "comp-1", f.mems.requests[0].CompanionID)
}

func TestSendBuildsModelRequest(t *testing.T) {
	f := newFixture()
	for i := range 3 {
		_, err := f.svc.Send(context.Background(), SendRequest{UserID: "u1", Message: fmt.Sprintf("message %d", i)})
		require.NoError(t, err)
	}

	req := f.llm.last
	require.NotNil(t, req)
	assert.Equal(t, "grok-3-fast", req.Model)
	require.NotNil(t, req.Config.Temperature)
	assert.InDelta(t, 0.8, *req.Config.Temperature, 1e-6)
	assert.Equal(t, int32(800), req.Config.MaxOutputTokens)

	// system + 4 earlier turns + new message, new message sent once.
	require.Len(t, req.Contents, 6)
	assert.Equal(t, "system", req.Contents[0].Role)
	assert.Equal(t, "message 0", req.Contents[1].Parts[0].Text)
	assert.Equal(t, "model", req.Contents[2].Role)
	last := req.Contents[len(req.Contents)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "message 2", last.Parts[0].Text)
	count := 0
	for _, c := range req.Contents {
		if c.Parts[0].Text == "message 2" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Send(context.Background(), SendRequest{UserID: "u1", Message: " \n "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, f.msgs.msgs)
	assert.Zero(t, f.llm.calls)
}

func TestSendMemoryFailureDoesNotBlockReply(t *testing.T) {
	f := newFixture()
	f.mems.err = errors.New("db down")

	res, err := f.svc.Send(context.Background(), SendRequest{UserID: "u1", Message: "I play chess"})
	require.NoError(t, err)
	assert.Nil(t, res.Memory)
	assert.Equal(t, "Hey you!", res.AssistantMessage.Content)
}

func TestSendHistoryFailureKeepsMemoryWrite(t *testing.T) {
	f := newFixture()
	f.msgs.recentErr = errors.New("connection reset")
	f.msgs.recentDone = make(chan struct{})
	f.mems.before = func(ctx context.Context) {
		<-f.msgs.recentDone
		select {
		case <-ctx.Done():
		case <-time.After(50 * time.Millisecond):
		}
	}

	_, err := f.svc.Send(context.Background(), SendRequest{UserID: "u1", Message: "My favorite food is ramen"})
	require.ErrorContains(t, err, "connection reset")
	require.Len(t, f.mems.requests, 1)
	assert.NoError(t, f.mems.ctxErr, "memory write must not be cancelled by the history load")
	assert.Zero(t, f.llm.calls)
}

func TestSendInvalidPersonalityAbortsBeforeModel(t *testing.T) {
	f := newFixture()
	broken := types.DefaultCompanion("u1")
	broken.ID = "comp-1"
	broken.Empathy = 0
	f.comps.companion = &broken

	_, err := f.svc.Send(context.Background(), SendRequest{UserID: "u1", Message: "hello"})
	assert.ErrorIs(t, err, prompt.ErrInvalidPersonality)
	assert.Zero(t, f.llm.calls)
	assert.Len(t, f.msgs.msgs, 1, "only the user message is stored")
}

func TestSendModelFailureIsGeneric(t *testing.T) {
	f := newFixture()
	f.llm.err = errors.New("502 bad gateway")

	_, err := f.svc.Send(context.Background(), SendRequest{UserID: "u1", Message: "hello"})
	assert.ErrorIs(t, err, ErrReplyUnavailable)
	assert.Len(t, f.msgs.msgs, 1)
	assert.Zero(t, f.convs.turns)
}

func TestSendEmptyReplyIsGeneric(t *testing.T) {
	f := newFixture()
	f.llm.reply = "   "

	_, err := f.svc.Send(context.Background(), SendRequest{UserID: "u1", Message: "hello"})
	assert.ErrorIs(t, err, ErrReplyUnavailable)
	assert.ErrorIs(t, err, prompt.ErrEmptyReply)
}

func TestSendWithReplyContext(t *testing.T) {
	f := newFixture()
	first, err := f.svc.Send(context.Background(), SendRequest{UserID: "u1", Message: "I adopted a cat"})
	require.NoError(t, err)

	res, err := f.svc.Send(context.Background(), SendRequest{
		UserID:    "u1",
		Message:   "her name is Miso",
		ReplyToID: first.AssistantMessage.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.AssistantMessage.ID, res.UserMessage.ReplyToID)
	assert.Equal(t, []string{first.AssistantMessage.ID}, f.msgs.replied)
	assert.True(t, strings.Contains(f.llm.last.Contents[0].Parts[0].Text, `"Hey you!"`))
}

func TestSendIgnoresUnknownReplyTarget(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Send(context.Background(), SendRequest{UserID: "u1", Message: "hello", ReplyToID: "nope"})
	require.NoError(t, err)
	assert.Empty(t, res.UserMessage.ReplyToID)
	assert.Empty(t, f.msgs.replied)
}

func TestDeleteMessageChecksOwnership(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Send(context.Background(), SendRequest{UserID: "u1", Message: "hello"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteMessage(context.Background(), "u2", res.UserMessage.ID), ErrForbidden)
	assert.ErrorIs(t, f.svc.DeleteMessage(context.Background(), "u1", "missing"), ErrMessageNotFound)

	require.NoError(t, f.svc.DeleteMessage(context.Background(), "u1", res.UserMessage.ID))
	assert.Equal(t, 1, f.convs.deletions)
	assert.ErrorIs(t, f.svc.DeleteMessage(context.Background(), "u1", res.UserMessage.ID), ErrMessageNotFound)

	h, err := f.svc.History(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, h.Messages, 1)
	assert.Equal(t, res.AssistantMessage.ID, h.Messages[0].ID)
}

func TestClearHistoryAndExport(t *testing.T) {
	f := newFixture()
	for _, msg := range []string{"hi", "how are you"} {
		_, err := f.svc.Send(context.Background(), SendRequest{UserID: "u1", Message: msg})
		require.NoError(t, err)
	}

	n, err := f.svc.ClearHistory(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	h, err := f.svc.History(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, h.Messages)

	tr, err := f.svc.Export(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alex", tr.CompanionName)
	require.NotNil(t, tr.Conversation)
	assert.Equal(t, 4, tr.Conversation.MessageCount)
	require.Len(t, tr.Messages, 4)
	assert.True(t, tr.Messages[0].IsDeleted)
	assert.Equal(t, "hi", tr.Messages[0].Content)
}

func TestExportWithoutConversation(t *testing.T) {
	f := newFixture()
	tr, err := f.svc.Export(context.Background(), "u9")
	require.NoError(t, err)
	assert.Nil(t, tr.Conversation)
	assert.Empty(t, tr.Messages)
}
