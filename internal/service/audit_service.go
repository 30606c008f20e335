package service

import (
	"context"

	"go-medical-chat-booking/internal/domain/entity"

	"github.com/sirupsen/logrus"
)

// AuditService records ledger state changes as structured log entries
type AuditService interface {
	LogCreate(ctx context.Context, sessionID string, action string, entityName string, entityID interface{}, newValue interface{})
	LogUpdate(ctx context.Context, sessionID string, action string, entityName string, entityID interface{}, oldValue, newValue interface{})
}

type auditService struct {
	log *logrus.Logger
}

func NewAuditService(log *logrus.Logger) AuditService {
	return &auditService{
		log: log,
	}
}

// LogCreate logs a create action
func (s *auditService) LogCreate(ctx context.Context, sessionID string, action string, entityName string, entityID interface{}, newValue interface{}) {
	s.write(entity.AuditEvent{
		SessionID: sessionID,
		Action:    action,
		Metadata: entity.JSON{
			"entity":    entityName,
			"entity_id": entityID,
			"old_value": nil,
			"new_value": newValue,
		},
	})
}

// LogUpdate logs an update action with old and new values
func (s *auditService) LogUpdate(ctx context.Context, sessionID string, action string, entityName string, entityID interface{}, oldValue, newValue interface{}) {
	s.write(entity.AuditEvent{
		SessionID: sessionID,
		Action:    action,
		Metadata: entity.JSON{
			"entity":    entityName,
			"entity_id": entityID,
			"old_value": oldValue,
			"new_value": newValue,
		},
	})
}

func (s *auditService) write(event entity.AuditEvent) {
	fields := logrus.Fields{
		"audit":      true,
		"action":     event.Action,
		"session_id": event.SessionID,
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}
	s.log.WithFields(fields).Info("audit")
}
