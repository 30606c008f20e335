package jwt

import (
	"errors"
	"time"

	"go-medical-chat-booking/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims binds a conversation to a session id and the patient it books for
type SessionClaims struct {
	SessionID   string `json:"session_id"`
	PatientName string `json:"patient_name"`
	jwt.RegisteredClaims
}

type SessionService struct {
	config config.SessionConfig
}

func NewSessionService(cfg config.SessionConfig) *SessionService {
	return &SessionService{config: cfg}
}

// NewSession mints a fresh session id and its signed token
func (s *SessionService) NewSession(patientName string) (string, *SessionClaims, error) {
	now := time.Now()
	claims := &SessionClaims{
		SessionID:   uuid.NewString(),
		PatientName: patientName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", nil, err
	}

	return signedToken, claims, nil
}

func (s *SessionService) ValidateToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
