package entity

// JSON is free-form audit metadata
type JSON map[string]interface{}

// AuditEvent is one entry of the ledger audit trail
type AuditEvent struct {
	SessionID string
	Action    string
	Metadata  JSON
}

// Common audit actions
const (
	AuditActionAppointmentSchedule = "appointment.schedule"
	AuditActionAppointmentCancel   = "appointment.cancel"
	AuditActionConversationReset   = "conversation.reset"
)
