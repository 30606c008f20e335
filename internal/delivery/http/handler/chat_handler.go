package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"go-medical-chat-booking/internal/delivery/dto"
	"go-medical-chat-booking/internal/delivery/http/middleware"
	"go-medical-chat-booking/internal/usecase"
	"go-medical-chat-booking/pkg/response"
	"go-medical-chat-booking/pkg/validator"
)

// maxChatBodyBytes bounds the request body; user_message itself is capped by validation
const maxChatBodyBytes = 64 << 10

type ChatHandler struct {
	chatUsecase usecase.ChatUsecase
	validator   *validator.CustomValidator
}

func NewChatHandler(chatUsecase usecase.ChatUsecase, validator *validator.CustomValidator) *ChatHandler {
	return &ChatHandler{
		chatUsecase: chatUsecase,
		validator:   validator,
	}
}

// Chat handles one user utterance. Every outcome, including internal
// failures, is a 200 with a reply text.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Session not found")
		return
	}

	req, err := decodeChatRequest(w, r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	result := h.chatUsecase.HandleMessage(r.Context(), session, req.UserMessage)
	response.Reply(w, result.Reply)
}

// Reset starts a new conversation for the session
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Session not found")
		return
	}

	if err := h.chatUsecase.ResetConversation(r.Context(), session); err != nil {
		response.Reply(w, usecase.ReplyInternalFailure)
		return
	}

	response.Reply(w, usecase.ReplyConversationReset)
}

// decodeChatRequest reads user_message from a JSON body, falling back to the
// query string when the body is empty.
func decodeChatRequest(w http.ResponseWriter, r *http.Request) (*dto.ChatRequest, error) {
	var req dto.ChatRequest

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(body)) == 0 {
		req.UserMessage = r.URL.Query().Get("user_message")
		return &req, nil
	}

	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
