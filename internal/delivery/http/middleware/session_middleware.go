package middleware

import (
	"context"
	"net/http"
	"strings"

	"go-medical-chat-booking/internal/domain/entity"
	"go-medical-chat-booking/pkg/jwt"
	"go-medical-chat-booking/pkg/response"

	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	SessionKey   contextKey = "session"
	RequestIDKey contextKey = "request_id"
)

const (
	SessionTokenHeader = "X-Session-Token"
	PatientNameHeader  = "X-Patient-Name"
	RequestIDHeader    = "X-Request-ID"
)

const maxPatientNameLength = 255

type SessionMiddleware struct {
	sessionService     *jwt.SessionService
	defaultPatientName string
	log                *logrus.Logger
}

func NewSessionMiddleware(sessionService *jwt.SessionService, defaultPatientName string, log *logrus.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		sessionService:     sessionService,
		defaultPatientName: defaultPatientName,
		log:                log,
	}
}

// Authenticate resolves the caller's session. A request without a token
// starts a new session whose token is returned in the response header.
func (m *SessionMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var claims *jwt.SessionClaims

		tokenString := strings.TrimSpace(r.Header.Get(SessionTokenHeader))
		if tokenString == "" {
			token, newClaims, err := m.sessionService.NewSession(m.patientName(r))
			if err != nil {
				m.log.Errorf("Failed to start session: %+v", err)
				response.InternalServerError(w, "Failed to start session")
				return
			}
			claims = newClaims
			tokenString = token
		} else {
			validClaims, err := m.sessionService.ValidateToken(tokenString)
			if err != nil {
				response.Unauthorized(w, "Invalid or expired session token")
				return
			}
			claims = validClaims
		}

		w.Header().Set(SessionTokenHeader, tokenString)

		ctx := context.WithValue(r.Context(), SessionKey, entity.Session{
			ID:          claims.SessionID,
			PatientName: claims.PatientName,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *SessionMiddleware) patientName(r *http.Request) string {
	name := strings.Join(strings.Fields(r.Header.Get(PatientNameHeader)), " ")
	if name == "" || len(name) > maxPatientNameLength {
		return m.defaultPatientName
	}
	return name
}

// GetSessionFromContext extracts the session from context
func GetSessionFromContext(ctx context.Context) (entity.Session, bool) {
	session, ok := ctx.Value(SessionKey).(entity.Session)
	return session, ok
}

// GetRequestIDFromContext extracts the request id from context
func GetRequestIDFromContext(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	return requestID, ok
}
