package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go-medical-chat-booking/config"
	"go-medical-chat-booking/internal/delivery/dto"
	"go-medical-chat-booking/internal/delivery/http/handler"
	"go-medical-chat-booking/internal/delivery/http/middleware"
	"go-medical-chat-booking/internal/domain/entity"
	"go-medical-chat-booking/internal/usecase"
	"go-medical-chat-booking/pkg/jwt"
	"go-medical-chat-booking/pkg/validator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatUsecase struct {
	mu         sync.Mutex
	sessions   []entity.Session
	utterances []string
	resetErr   error
}

func (s *stubChatUsecase) HandleMessage(ctx context.Context, session entity.Session, utterance string) *usecase.ChatResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, session)
	s.utterances = append(s.utterances, utterance)
	return &usecase.ChatResult{Reply: "echo: " + utterance, State: usecase.StateClarificationSent}
}

func (s *stubChatUsecase) ResetConversation(ctx context.Context, session entity.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, session)
	return s.resetErr
}

type stubAppointmentUsecase struct {
	req *dto.AppointmentListRequest
}

func (s *stubAppointmentUsecase) ListAppointments(ctx context.Context, req *dto.AppointmentListRequest) (*dto.AppointmentListResponse, error) {
	s.req = req
	return &dto.AppointmentListResponse{
		Appointments: []dto.AppointmentResponse{{ID: 1, PatientName: "Alice", DoctorName: "Smith", AppointmentDate: "2025-03-10 14:00", Status: "Scheduled"}},
		Total:        1,
	}, nil
}

type routerFixture struct {
	handler      http.Handler
	chat         *stubChatUsecase
	appointments *stubAppointmentUsecase
	sessions     *jwt.SessionService
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	chat := &stubChatUsecase{}
	appointments := &stubAppointmentUsecase{}
	sessions := jwt.NewSessionService(config.SessionConfig{Secret: "test-secret", Expiry: time.Hour})
	v := validator.NewValidator()

	router := NewRouter(
		handler.NewChatHandler(chat, v),
		handler.NewAppointmentHandler(appointments, v),
		middleware.NewSessionMiddleware(sessions, "User", log),
		middleware.NewRequestLoggerMiddleware(log),
		middleware.NewCORSMiddleware(),
		prometheus.NewRegistry(),
	)

	return &routerFixture{handler: router.Setup(), chat: chat, appointments: appointments, sessions: sessions}
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeReply(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	reply, ok := body["response"].(string)
	require.True(t, ok)
	return reply
}

func TestChat_StartsSessionAndReusesIt(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"user_message": "I need a dentist"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.PatientNameHeader, "  Alice   Doe ")
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "echo: I need a dentist", decodeReply(t, rec))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	token := rec.Header().Get(middleware.SessionTokenHeader)
	require.NotEmpty(t, token)
	claims, err := f.sessions.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "Alice Doe", claims.PatientName)

	req = httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"user_message": "tomorrow at 10:00"}`))
	req.Header.Set(middleware.SessionTokenHeader, token)
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.chat.sessions, 2)
	assert.Equal(t, f.chat.sessions[0], f.chat.sessions[1])
	assert.Equal(t, claims.SessionID, f.chat.sessions[0].ID)
}

func TestChat_DefaultPatientName(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"user_message": "hi"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.chat.sessions, 1)
	assert.Equal(t, "User", f.chat.sessions[0].PatientName)
}

func TestChat_InvalidToken(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"user_message": "hi"}`))
	req.Header.Set(middleware.SessionTokenHeader, "not-a-token")
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.chat.utterances)
}

func TestChat_TokenSignedWithOtherSecret(t *testing.T) {
	f := newRouterFixture(t)
	other := jwt.NewSessionService(config.SessionConfig{Secret: "other-secret", Expiry: time.Hour})
	token, _, err := other.NewSession("Mallory")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"user_message": "hi"}`))
	req.Header.Set(middleware.SessionTokenHeader, token)
	rec := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChat_QueryParameterFallback(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/chat?user_message=Book+Dr.+Smith", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Book Dr. Smith"}, f.chat.utterances)
}

func TestChat_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing message", `{}`},
		{"empty message", `{"user_message": ""}`},
		{"too long", `{"user_message": "` + strings.Repeat("a", 2001) + `"}`},
		{"malformed json", `{"user_message": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			rec := f.do(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, f.chat.utterances)
		})
	}
}

func TestChat_Reset(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/chat/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, usecase.ReplyConversationReset, decodeReply(t, rec))

	f.chat.resetErr = errors.New("redis down")
	rec = f.do(httptest.NewRequest(http.MethodPost, "/chat/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, usecase.ReplyInternalFailure, decodeReply(t, rec))
}

func TestChat_PreflightSkipsSession(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set(middleware.SessionTokenHeader, "not-a-token")
	rec := f.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), middleware.SessionTokenHeader)
}

func TestAppointments_List(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/appointments?doctor=Smith&status=Scheduled", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.appointments.req)
	assert.Equal(t, "Smith", f.appointments.req.Doctor)
	assert.Equal(t, "Scheduled", f.appointments.req.Status)

	var body struct {
		Success bool                        `json:"success"`
		Data    dto.AppointmentListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.Data.Total)
}

func TestAppointments_InvalidStatus(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/appointments?status=Pending", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, f.appointments.req)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
