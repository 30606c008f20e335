package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-medical-chat-booking/internal/domain/entity"
	"go-medical-chat-booking/internal/domain/repository"
	"go-medical-chat-booking/internal/observability/metrics"
	"go-medical-chat-booking/internal/service"

	"github.com/sirupsen/logrus"
)

// ResolutionState is the terminal state of one utterance
type ResolutionState string

const (
	StateCommitted         ResolutionState = "Committed"
	StateClarificationSent ResolutionState = "ClarificationSent"
	StateFailed            ResolutionState = "Failed"
)

// Resolution reasons, also used as metric labels
const (
	ReasonScheduled             = "scheduled"
	ReasonCancelled             = "cancelled"
	ReasonClarification         = "clarification"
	ReasonSlotConflict          = "slot_conflict"
	ReasonNoMatchingAppointment = "no_matching_appointment"
	ReasonMalformed             = "malformed"
	ReasonUnparseable           = "unparseable"
	ReasonProviderUnavailable   = "provider_unavailable"
	ReasonInternal              = "internal"
)

// Fixed replies
const (
	ReplyUnparseable           = "Sorry, I couldn't understand your request. Could you please rephrase?"
	ReplySlotConflict          = "This time slot is already taken. Please select a different time."
	ReplyNoMatchingAppointment = "No scheduled appointment found to cancel at the specified time."
	ReplyProviderUnavailable   = "Sorry, the appointment assistant is unavailable right now. Please try again later."
	ReplyInternalFailure       = "An error occurred. Please try again later."
	ReplyConversationReset     = "Started a new conversation."
	ReplyMissingDoctor         = "Which doctor would you like to see?"
)

const defaultCancelKeyword = "cancel"

// ChatResult is the outcome of one utterance. Appointment is set only when
// State is StateCommitted.
type ChatResult struct {
	Reply       string
	State       ResolutionState
	Reason      string
	Appointment *entity.Appointment
}

// ChatOptions tunes the orchestrator. ProviderTimeout of zero means the
// provider call is bounded only by the provider client itself.
type ChatOptions struct {
	CancelKeyword   string
	ProviderTimeout time.Duration
}

type ChatUsecase interface {
	HandleMessage(ctx context.Context, session entity.Session, utterance string) *ChatResult
	ResetConversation(ctx context.Context, session entity.Session) error
}

type chatUsecase struct {
	log              *logrus.Logger
	conversationRepo repository.ConversationRepository
	provider         UnderstandingProvider
	ledger           AppointmentLedgerUsecase
	sessionLocker    service.SlotLocker
	metrics          *metrics.ChatMetrics
	cancelKeyword    string
	providerTimeout  time.Duration
}

func NewChatUsecase(
	log *logrus.Logger,
	conversationRepo repository.ConversationRepository,
	provider UnderstandingProvider,
	ledger AppointmentLedgerUsecase,
	sessionLocker service.SlotLocker,
	chatMetrics *metrics.ChatMetrics,
	opts ChatOptions,
) ChatUsecase {
	keyword := strings.ToLower(strings.TrimSpace(opts.CancelKeyword))
	if keyword == "" {
		keyword = defaultCancelKeyword
	}
	return &chatUsecase{
		log:              log,
		conversationRepo: conversationRepo,
		provider:         provider,
		ledger:           ledger,
		sessionLocker:    sessionLocker,
		metrics:          chatMetrics,
		cancelKeyword:    keyword,
		providerTimeout:  opts.ProviderTimeout,
	}
}

// HandleMessage resolves one utterance to exactly one reply.
//
// Flow:
// 1. Load the session history and record the user turn
// 2. Ask the understanding provider for a raw reply
// 3. Extract the intent and, for an action, commit it to the ledger
// 4. Clear the conversation on commit, otherwise record the assistant turn
//
// The caller's cancellation is detached so a disconnect cannot leave a
// half-applied turn behind. Turns of one session run one at a time so the
// history read and write of a turn never interleave with another turn.
func (u *chatUsecase) HandleMessage(ctx context.Context, session entity.Session, utterance string) *ChatResult {
	ctx = context.WithoutCancel(ctx)

	var result *ChatResult
	unlock, err := u.sessionLocker.Lock(ctx, sessionLockKey(session.ID))
	if err != nil {
		result = u.internalFailure(session, "lock session", err)
	} else {
		result = u.resolve(ctx, session, utterance)
		unlock()
	}
	u.metrics.ObserveOutcome(string(result.State), result.Reason)
	return result
}

func sessionLockKey(sessionID string) string {
	return "session|" + sessionID
}

// ResetConversation discards the session's negotiation state.
func (u *chatUsecase) ResetConversation(ctx context.Context, session entity.Session) error {
	if err := u.conversationRepo.Clear(ctx, session.ID); err != nil {
		u.log.Warnf("Failed to reset conversation for session %s: %+v", session.ID, err)
		return err
	}
	u.log.WithFields(logrus.Fields{
		"session_id": session.ID,
		"action":     entity.AuditActionConversationReset,
	}).Info("Conversation reset")
	return nil
}

func (u *chatUsecase) resolve(ctx context.Context, session entity.Session, utterance string) *ChatResult {
	history, err := u.conversationRepo.History(ctx, session.ID)
	if err != nil {
		return u.internalFailure(session, "load conversation", err)
	}

	userTurn := entity.ConversationTurn{Role: entity.TurnRoleUser, Content: utterance}
	if err := u.conversationRepo.Append(ctx, session.ID, userTurn); err != nil {
		return u.internalFailure(session, "record user turn", err)
	}

	raw, err := u.converse(ctx, history, utterance)
	if err != nil {
		u.log.Errorf("Understanding provider failed for session %s: %+v", session.ID, err)
		return &ChatResult{Reply: ReplyProviderUnavailable, State: StateFailed, Reason: ReasonProviderUnavailable}
	}

	var result *ChatResult
	intent := ExtractIntent(raw)
	switch intent.Kind {
	case entity.IntentClarification:
		result = clarification(intent.PromptText, ReasonClarification)
	case entity.IntentAction:
		result = u.commitAction(ctx, session, utterance, intent)
	default:
		u.log.Debugf("Unparseable provider reply for session %s: %q", session.ID, raw)
		result = &ChatResult{Reply: ReplyUnparseable, State: StateFailed, Reason: ReasonUnparseable}
	}

	if result.State == StateCommitted {
		if err := u.conversationRepo.Clear(ctx, session.ID); err != nil {
			u.log.Errorf("Failed to clear conversation for session %s after commit: %+v", session.ID, err)
		}
		return result
	}

	assistantTurn := entity.ConversationTurn{Role: entity.TurnRoleAssistant, Content: raw}
	if err := u.conversationRepo.Append(ctx, session.ID, assistantTurn); err != nil {
		u.log.Warnf("Failed to record assistant turn for session %s: %+v", session.ID, err)
	}
	return result
}

func (u *chatUsecase) converse(ctx context.Context, history []entity.ConversationTurn, utterance string) (string, error) {
	if u.providerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.providerTimeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := u.provider.Converse(ctx, history, utterance)
	status := "ok"
	if err != nil {
		status = "error"
	}
	u.metrics.ObserveProviderLatency(status, time.Since(start).Seconds())

	if err != nil && !errors.Is(err, ErrProviderUnavailable) {
		err = fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	return raw, err
}

func (u *chatUsecase) commitAction(ctx context.Context, session entity.Session, utterance string, intent entity.BookingIntent) *ChatResult {
	req := SlotRequest{DoctorName: intent.DoctorName, Date: intent.Date, Time: intent.Time}

	if u.isCancellation(utterance) {
		appointment, err := u.ledger.Cancel(ctx, session, req)
		switch {
		case err == nil:
			return &ChatResult{
				Reply: fmt.Sprintf("Your appointment with Dr. %s on %s at %s has been cancelled successfully.",
					appointment.DoctorName, appointment.Date(), appointment.Time()),
				State:       StateCommitted,
				Reason:      ReasonCancelled,
				Appointment: appointment,
			}
		case errors.Is(err, ErrNoMatchingAppointment):
			return clarification(ReplyNoMatchingAppointment, ReasonNoMatchingAppointment)
		}
		return u.ledgerFailure(session, err)
	}

	appointment, err := u.ledger.Schedule(ctx, session, req)
	switch {
	case err == nil:
		return &ChatResult{
			Reply: fmt.Sprintf("Your appointment with Dr. %s has been successfully scheduled for %s at %s.",
				appointment.DoctorName, appointment.Date(), appointment.Time()),
			State:       StateCommitted,
			Reason:      ReasonScheduled,
			Appointment: appointment,
		}
	case errors.Is(err, ErrSlotConflict):
		return clarification(ReplySlotConflict, ReasonSlotConflict)
	}
	return u.ledgerFailure(session, err)
}

// isCancellation is a case-insensitive substring match on the raw utterance
func (u *chatUsecase) isCancellation(utterance string) bool {
	return strings.Contains(strings.ToLower(utterance), u.cancelKeyword)
}

func (u *chatUsecase) ledgerFailure(session entity.Session, err error) *ChatResult {
	var malformed *MalformedSlotError
	if errors.As(err, &malformed) {
		return clarification(malformedReply(malformed), ReasonMalformed)
	}
	return u.internalFailure(session, "commit appointment", err)
}

func (u *chatUsecase) internalFailure(session entity.Session, step string, err error) *ChatResult {
	u.log.Errorf("Failed to %s for session %s: %+v", step, session.ID, err)
	return &ChatResult{Reply: ReplyInternalFailure, State: StateFailed, Reason: ReasonInternal}
}

func clarification(reply, reason string) *ChatResult {
	return &ChatResult{Reply: reply, State: StateClarificationSent, Reason: reason}
}

func malformedReply(err *MalformedSlotError) string {
	switch err.Field {
	case SlotFieldDate:
		return fmt.Sprintf("The date %q is not valid. Please provide the date in YYYY-MM-DD format.", err.Value)
	case SlotFieldTime:
		return fmt.Sprintf("The time %q is not valid. Please provide the time in HH:MM format.", err.Value)
	}
	return ReplyMissingDoctor
}
