package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-medical-chat-booking/internal/domain/entity"
	"go-medical-chat-booking/internal/domain/repository"
	repoImpl "go-medical-chat-booking/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// scriptedProvider replays canned replies and records what it was asked.
type scriptedProvider struct {
	mu        sync.Mutex
	replies   []string
	err       error
	histories [][]entity.ConversationTurn
	deadlines []bool
}

func (p *scriptedProvider) Converse(ctx context.Context, history []entity.ConversationTurn, utterance string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.histories = append(p.histories, append([]entity.ConversationTurn(nil), history...))
	_, hasDeadline := ctx.Deadline()
	p.deadlines = append(p.deadlines, hasDeadline)

	if p.err != nil {
		return "", p.err
	}
	if len(p.replies) == 0 {
		return "", errors.New("no scripted reply left")
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return reply, nil
}

// failingConversationRepository fails History so the orchestrator hits an internal fault
type failingConversationRepository struct {
	repository.ConversationRepository
}

func (failingConversationRepository) History(ctx context.Context, sessionID string) ([]entity.ConversationTurn, error) {
	return nil, errors.New("store unreachable")
}

type chatFixture struct {
	db       *gorm.DB
	provider *scriptedProvider
	history  repository.ConversationRepository
	chat     ChatUsecase
}

func newChatFixture(t *testing.T, replies ...string) *chatFixture {
	t.Helper()

	db := newTestDB(t)
	provider := &scriptedProvider{replies: replies}
	history := repoImpl.NewMemoryConversationRepository()

	return &chatFixture{
		db:       db,
		provider: provider,
		history:  history,
		chat: NewChatUsecase(newTestLogger(), history, provider, newTestLedger(t, db), newTestSessionLocker(t), nil, ChatOptions{
			CancelKeyword: "cancel",
		}),
	}
}

func (f *chatFixture) turns(t *testing.T, sessionID string) []entity.ConversationTurn {
	t.Helper()
	turns, err := f.history.History(context.Background(), sessionID)
	require.NoError(t, err)
	return turns
}

func (f *chatFixture) countAppointments(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&entity.Appointment{}).Count(&count).Error)
	return count
}

const smithPayload = "```json\n{\"doctor\": \"Smith\", \"date\": \"2025-03-10\", \"time\": \"14:00\"}\n```"

func TestChat_ClarificationLeavesLedgerUntouched(t *testing.T) {
	ask := `{"info_required": "What date and time would you like for your dentist appointment?"}`
	f := newChatFixture(t, ask, ask)

	for i := 0; i < 2; i++ {
		result := f.chat.HandleMessage(context.Background(), testSession, "I need a dentist appointment")
		assert.Equal(t, StateClarificationSent, result.State)
		assert.Equal(t, "What date and time would you like for your dentist appointment?", result.Reply)
		assert.Nil(t, result.Appointment)
	}

	assert.Zero(t, f.countAppointments(t))
	// both user turns and both assistant replies are kept
	assert.Len(t, f.turns(t, testSession.ID), 4)
}

func TestChat_ScheduleConflictCancelFlow(t *testing.T) {
	f := newChatFixture(t, smithPayload, smithPayload, smithPayload, smithPayload)
	ctx := context.Background()

	// book
	result := f.chat.HandleMessage(ctx, testSession, "Book Dr. Smith for 2025-03-10 14:00")
	require.Equal(t, StateCommitted, result.State)
	assert.Equal(t, "Your appointment with Dr. Smith has been successfully scheduled for 2025-03-10 at 14:00.", result.Reply)
	require.NotNil(t, result.Appointment)
	assert.Equal(t, "Alice", result.Appointment.PatientName)
	assert.Empty(t, f.turns(t, testSession.ID))

	// same slot again
	result = f.chat.HandleMessage(ctx, testSession, "Book Dr. Smith for 2025-03-10 14:00")
	assert.Equal(t, StateClarificationSent, result.State)
	assert.Equal(t, ReplySlotConflict, result.Reply)
	assert.Len(t, scheduledRows(t, f.db, "Smith", "2025-03-10 14:00"), 1)
	assert.Len(t, f.turns(t, testSession.ID), 2)

	// cancel
	result = f.chat.HandleMessage(ctx, testSession, "Cancel my appointment with Dr. Smith on 2025-03-10 at 14:00")
	require.Equal(t, StateCommitted, result.State)
	assert.Equal(t, "Your appointment with Dr. Smith on 2025-03-10 at 14:00 has been cancelled successfully.", result.Reply)
	assert.Empty(t, scheduledRows(t, f.db, "Smith", "2025-03-10 14:00"))
	assert.Empty(t, f.turns(t, testSession.ID))

	// cancel again
	result = f.chat.HandleMessage(ctx, testSession, "CANCEL my appointment with Dr. Smith on 2025-03-10 at 14:00")
	assert.Equal(t, StateClarificationSent, result.State)
	assert.Equal(t, ReplyNoMatchingAppointment, result.Reply)
	assert.Equal(t, int64(1), f.countAppointments(t))
}

func TestChat_UnparseableReply(t *testing.T) {
	f := newChatFixture(t, "Sure! Dr. Smith is available on Monday.")

	result := f.chat.HandleMessage(context.Background(), testSession, "Book Dr. Smith")
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, ReplyUnparseable, result.Reply)

	turns := f.turns(t, testSession.ID)
	require.Len(t, turns, 2)
	assert.Equal(t, entity.TurnRoleUser, turns[0].Role)
	assert.Equal(t, entity.TurnRoleAssistant, turns[1].Role)
}

func TestChat_MalformedDateAsksAgain(t *testing.T) {
	f := newChatFixture(t, `{"doctor": "Smith", "date": "next Monday", "time": "14:00"}`)

	result := f.chat.HandleMessage(context.Background(), testSession, "Book Dr. Smith next Monday at 2")
	assert.Equal(t, StateClarificationSent, result.State)
	assert.Equal(t, ReasonMalformed, result.Reason)
	assert.Contains(t, result.Reply, `"next Monday"`)
	assert.Contains(t, result.Reply, "YYYY-MM-DD")
	assert.Zero(t, f.countAppointments(t))
}

func TestChat_ProviderUnavailable(t *testing.T) {
	f := newChatFixture(t)
	f.provider.err = errors.New("connection refused")

	result := f.chat.HandleMessage(context.Background(), testSession, "Book Dr. Smith")
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, ReasonProviderUnavailable, result.Reason)
	assert.Equal(t, ReplyProviderUnavailable, result.Reply)

	// the user turn stays so the next attempt still sees it
	assert.Len(t, f.turns(t, testSession.ID), 1)
}

func TestChat_InternalFailureIsNotLeaked(t *testing.T) {
	db := newTestDB(t)
	provider := &scriptedProvider{replies: []string{smithPayload}}
	chat := NewChatUsecase(newTestLogger(), failingConversationRepository{}, provider, newTestLedger(t, db), newTestSessionLocker(t), nil, ChatOptions{})

	result := chat.HandleMessage(context.Background(), testSession, "Book Dr. Smith")
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, ReplyInternalFailure, result.Reply)
	assert.NotContains(t, result.Reply, "unreachable")
	assert.Empty(t, provider.histories)
}

func TestChat_HistoryIsPassedToProvider(t *testing.T) {
	f := newChatFixture(t, `{"info_required": "Which date?"}`, smithPayload)
	ctx := context.Background()

	f.chat.HandleMessage(ctx, testSession, "I want to see Dr. Smith")
	f.chat.HandleMessage(ctx, testSession, "2025-03-10 at 14:00")

	require.Len(t, f.provider.histories, 2)
	assert.Empty(t, f.provider.histories[0])
	assert.Equal(t, []entity.ConversationTurn{
		{Role: entity.TurnRoleUser, Content: "I want to see Dr. Smith"},
		{Role: entity.TurnRoleAssistant, Content: `{"info_required": "Which date?"}`},
	}, f.provider.histories[1])
}

func TestChat_SessionsAreIsolated(t *testing.T) {
	f := newChatFixture(t, `{"info_required": "Which date?"}`, `{"info_required": "Which doctor?"}`)
	ctx := context.Background()
	other := entity.Session{ID: "session-2", PatientName: "Bob"}

	f.chat.HandleMessage(ctx, testSession, "I want to see Dr. Smith")
	f.chat.HandleMessage(ctx, other, "I need an appointment")

	require.Len(t, f.provider.histories, 2)
	assert.Empty(t, f.provider.histories[1])
	assert.Len(t, f.turns(t, testSession.ID), 2)
	assert.Len(t, f.turns(t, other.ID), 2)
}

func TestChat_ResetConversation(t *testing.T) {
	f := newChatFixture(t, `{"info_required": "Which date?"}`)
	ctx := context.Background()

	f.chat.HandleMessage(ctx, testSession, "I want to see Dr. Smith")
	require.NotEmpty(t, f.turns(t, testSession.ID))

	require.NoError(t, f.chat.ResetConversation(ctx, testSession))
	assert.Empty(t, f.turns(t, testSession.ID))
}

func TestChat_CallerCancellationIsDetached(t *testing.T) {
	db := newTestDB(t)
	provider := &scriptedProvider{replies: []string{smithPayload}}
	chat := NewChatUsecase(newTestLogger(), repoImpl.NewMemoryConversationRepository(), provider, newTestLedger(t, db), newTestSessionLocker(t), nil, ChatOptions{
		ProviderTimeout: time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := chat.HandleMessage(ctx, testSession, "Book Dr. Smith for 2025-03-10 14:00")
	assert.Equal(t, StateCommitted, result.State)
	require.Len(t, provider.deadlines, 1)
	assert.True(t, provider.deadlines[0])
}

// overlapProvider answers slowly and records how many turns ran at once.
type overlapProvider struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	historyLens []int
}

func (p *overlapProvider) Converse(ctx context.Context, history []entity.ConversationTurn, utterance string) (string, error) {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	p.historyLens = append(p.historyLens, len(history))
	p.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()
	return `{"info_required": "Which doctor?"}`, nil
}

func TestChat_SameSessionTurnsAreSerialized(t *testing.T) {
	db := newTestDB(t)
	provider := &overlapProvider{}
	history := repoImpl.NewMemoryConversationRepository()
	chat := NewChatUsecase(newTestLogger(), history, provider, newTestLedger(t, db), newTestSessionLocker(t), nil, ChatOptions{})

	const turns = 8
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := chat.HandleMessage(context.Background(), testSession, "I need an appointment")
			assert.Equal(t, StateClarificationSent, result.State)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, provider.maxInFlight)
	require.Len(t, provider.historyLens, turns)
	for _, n := range provider.historyLens {
		// each turn sees only complete user/assistant pairs
		assert.Zero(t, n%2, "history length %d", n)
	}

	stored, err := history.History(context.Background(), testSession.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2*turns)
}

type failingSessionLocker struct{}

func (failingSessionLocker) Lock(ctx context.Context, key string) (func(), error) {
	return nil, errors.New("lock backend down")
}

func TestChat_SessionLockFailureIsInternal(t *testing.T) {
	db := newTestDB(t)
	provider := &scriptedProvider{replies: []string{smithPayload}}
	chat := NewChatUsecase(newTestLogger(), repoImpl.NewMemoryConversationRepository(), provider, newTestLedger(t, db), failingSessionLocker{}, nil, ChatOptions{})

	result := chat.HandleMessage(context.Background(), testSession, "Book Dr. Smith for 2025-03-10 14:00")
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, ReasonInternal, result.Reason)
	assert.Equal(t, ReplyInternalFailure, result.Reply)
	assert.Empty(t, provider.histories)
}
