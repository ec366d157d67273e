package services

import (
	"strings"

	"chat-server/internal/apperr"
	"chat-server/internal/models"
)

// MessageProcessor validates a send request for one message type and fills the draft.
type MessageProcessor interface {
	Process(req SendMessageRequest, draft *models.Message) error
}

// ProcessorFunc adapts a function to MessageProcessor.
type ProcessorFunc func(req SendMessageRequest, draft *models.Message) error

func (f ProcessorFunc) Process(req SendMessageRequest, draft *models.Message) error {
	return f(req, draft)
}

// DefaultProcessors is the strategy table for the built-in message types.
func DefaultProcessors() map[models.MessageType]MessageProcessor {
	return map[models.MessageType]MessageProcessor{
		models.MessageTypeText:  ProcessorFunc(processText),
		models.MessageTypeImage: ProcessorFunc(processMedia),
		models.MessageTypeVideo: ProcessorFunc(processMedia),
		models.MessageTypeVoice: ProcessorFunc(processMedia),
	}
}

func processText(req SendMessageRequest, draft *models.Message) error {
	if strings.TrimSpace(req.Content) == "" {
		return apperr.Validation("text message content cannot be empty")
	}
	draft.Content = req.Content
	draft.MediaURL = nil
	return nil
}

// processMedia requires a media URL; content is kept as an optional caption.
func processMedia(req SendMessageRequest, draft *models.Message) error {
	if req.MediaURL == nil || strings.TrimSpace(*req.MediaURL) == "" {
		return apperr.Validation("%s message requires a media url", strings.ToLower(string(draft.Type)))
	}
	url := strings.TrimSpace(*req.MediaURL)
	draft.MediaURL = &url
	draft.Content = strings.TrimSpace(req.Content)
	return nil
}
