package entity

// TurnRole identifies who produced a conversation turn
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// ConversationTurn is one message of an ongoing negotiation
type ConversationTurn struct {
	Role    TurnRole `json:"role"`
	Content string   `json:"content"`
}

// Session identifies the caller of the chat boundary. One session owns one
// conversation state.
type Session struct {
	ID          string
	PatientName string
}
