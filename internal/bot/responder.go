package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/gemini"
	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/session"
	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/telegram"
)

const (
	placeholderText = "..."
	apologyText     = "Произошла ошибка при обработке запроса."
)

// ChatAPI is the slice of the Telegram client the responder and router use.
type ChatAPI interface {
	SendMessage(ctx context.Context, chatID int64, text string) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
}

// TextStream is a lazy, ordered, finite sequence of response fragments.
type TextStream interface {
	Recv() (string, error)
	Close() error
}

// StreamFunc starts a streaming completion request.
type StreamFunc func(ctx context.Context, req gemini.GenerateRequest) (TextStream, error)

// Responder drives one streaming response cycle: it sends a "..."
// placeholder, folds arriving chunks into a buffer, republishes the buffer
// as edits of the placeholder, and records the outcome as a model turn.
type Responder struct {
	store  *session.Store
	chat   ChatAPI
	stream StreamFunc
	logger *slog.Logger
}

func NewResponder(store *session.Store, chat ChatAPI, stream StreamFunc, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{store: store, chat: chat, stream: stream, logger: logger}
}

type RespondRequest struct {
	UserID int64
	ChatID int64
	// Request carries the conversation plus the freshly built user turn.
	Request gemini.GenerateRequest
	// FailureReply is the message shown to the user when the cycle fails.
	FailureReply string
}

// Respond runs one response cycle and returns the final accumulated text.
// On failure the fixed apology turn is appended to history instead of a
// partial buffer, the failure reply is sent, and the error is returned.
func (r *Responder) Respond(ctx context.Context, req RespondRequest) (string, error) {
	requestID := uuid.NewString()
	logger := r.logger.With("request_id", requestID, "chat_id", req.ChatID)

	stream, err := r.stream(ctx, req.Request)
	if err != nil {
		return "", r.fail(ctx, logger, req, "gemini_request_error", err)
	}
	defer stream.Close()

	placeholder, err := r.chat.SendMessage(ctx, req.ChatID, placeholderText)
	if err != nil {
		return "", r.fail(ctx, logger, req, "telegram_placeholder_error", err)
	}
	r.store.SetLastBotMessage(req.UserID, placeholder.MessageID)

	var accum string
	shown := placeholderText
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", r.fail(ctx, logger, req, "gemini_stream_error", err)
		}
		accum += chunk
		if accum == "" || accum == shown {
			continue
		}
		if err := r.chat.EditMessageText(ctx, req.ChatID, placeholder.MessageID, accum); err != nil {
			// Best effort: the next successful edit catches up.
			logger.Warn("telegram_edit_error", "message_id", placeholder.MessageID, "error", err.Error())
			continue
		}
		shown = accum
	}

	r.store.Append(req.UserID, gemini.RoleModel, []gemini.Part{gemini.TextPart(accum)})
	logger.Info("gemini_response_done", "chars", len(accum))
	return accum, nil
}

func (r *Responder) fail(ctx context.Context, logger *slog.Logger, req RespondRequest, event string, err error) error {
	logger.Warn(event, "error", err.Error())
	r.store.Append(req.UserID, gemini.RoleModel, []gemini.Part{gemini.TextPart(apologyText)})
	if _, sendErr := r.chat.SendMessage(ctx, req.ChatID, req.FailureReply); sendErr != nil {
		logger.Warn("telegram_failure_reply_error", "error", sendErr.Error())
	}
	return err
}
