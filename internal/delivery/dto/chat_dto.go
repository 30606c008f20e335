package dto

// Request DTOs

type ChatRequest struct {
	UserMessage string `json:"user_message" validate:"required,max=2000"`
}

// Response DTOs

type ChatResponse struct {
	Response string `json:"response"`
}
