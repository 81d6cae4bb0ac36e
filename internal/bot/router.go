package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/gemini"
	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/session"
	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/telegram"
	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/worker"
)

const (
	accessDeniedText = "Извините, у вас нет доступа к этому боту."
	greetingText     = "Привет! Я твой личный помощник на основе Gemini. Спрашивай что угодно! Я могу анализировать текст, изображения и аудио."
	idleClearedText  = "Чат очищен из-за неактивности."

	photoPrompt        = "Что изображено на картинке?"
	documentPrompt     = "Что содержится в этом файле?"
	voicePrompt        = "Проанализируй это аудио сообщение"
	photoMimeType      = "image/jpeg"
	unsupportedMimeFmt = "Извините, я не поддерживаю файлы с MIME-типом %s."

	textFailureText     = "Произошла ошибка при обработке запроса."
	photoFailureText    = "Произошла ошибка при обработке изображения."
	documentFailureText = "Произошла ошибка при обработке документа."
	voiceFailureText    = "Произошла ошибка при обработке голосового сообщения."
)

type Config struct {
	AllowedUserID int64
	IdleTimeout   time.Duration
	MaxConcurrent int
	QueueSize     int
}

// Router authorizes inbound messages, keeps the sliding inactivity window,
// and hands each message to its media-kind handler on the user's ordered
// work queue, so a burst from one user queues instead of racing the
// response already streaming.
type Router struct {
	cfg       Config
	chat      ChatAPI
	store     *session.Store
	timers    *session.TimerRegistry
	fetcher   *Fetcher
	responder *Responder
	logger    *slog.Logger
	pool      *worker.Pool[int64, *telegram.Message]
}

func NewRouter(ctx context.Context, cfg Config, chat ChatAPI, store *session.Store, timers *session.TimerRegistry, fetcher *Fetcher, responder *Responder, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	r := &Router{
		cfg:       cfg,
		chat:      chat,
		store:     store,
		timers:    timers,
		fetcher:   fetcher,
		responder: responder,
		logger:    logger,
	}
	r.pool = worker.NewPool(ctx, cfg.MaxConcurrent, cfg.QueueSize, r.handle)
	return r
}

// Dispatch is called from the poll loop for every inbound message. The
// authorization check and the timer re-arm happen here, before the message
// can wait in the queue.
func (r *Router) Dispatch(ctx context.Context, msg *telegram.Message) {
	if msg == nil || msg.Chat == nil || msg.From == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if userID != r.cfg.AllowedUserID {
		r.logger.Warn("telegram_unauthorized_user", "user_id", userID, "chat_id", chatID)
		if _, err := r.chat.SendMessage(ctx, chatID, accessDeniedText); err != nil {
			r.logger.Warn("telegram_send_error", "chat_id", chatID, "error", err.Error())
		}
		return
	}

	if strings.TrimSpace(msg.Text) == "/start" {
		if _, err := r.chat.SendMessage(ctx, chatID, greetingText); err != nil {
			r.logger.Warn("telegram_send_error", "chat_id", chatID, "error", err.Error())
		}
		return
	}

	r.timers.Arm(userID, r.cfg.IdleTimeout, r.onIdleExpire)

	if err := r.pool.Enqueue(ctx, userID, msg); err != nil {
		r.logger.Warn("telegram_enqueue_error", "user_id", userID, "error", err.Error())
	}
}

func (r *Router) onIdleExpire(userID int64) {
	r.store.Clear(userID)
	r.logger.Info("session_idle_cleared", "user_id", userID)
	if _, err := r.chat.SendMessage(context.Background(), userID, idleClearedText); err != nil {
		r.logger.Warn("telegram_send_error", "chat_id", userID, "error", err.Error())
	}
}

func (r *Router) handle(ctx context.Context, userID int64, msg *telegram.Message) {
	switch {
	case msg.Text != "":
		r.handleText(ctx, userID, msg)
	case len(msg.Photo) > 0:
		r.handlePhoto(ctx, userID, msg)
	case msg.Document != nil:
		r.handleDocument(ctx, userID, msg)
	case msg.Voice != nil:
		r.handleVoice(ctx, userID, msg)
	default:
		r.logger.Debug("telegram_unhandled_message", "chat_id", msg.Chat.ID, "message_id", msg.MessageID)
	}
}

func (r *Router) handleText(ctx context.Context, userID int64, msg *telegram.Message) {
	r.store.Append(userID, gemini.RoleUser, []gemini.Part{gemini.TextPart(msg.Text)})

	_, _ = r.responder.Respond(ctx, RespondRequest{
		UserID:       userID,
		ChatID:       msg.Chat.ID,
		Request:      gemini.TextRequest(r.store.Get(userID)),
		FailureReply: textFailureText,
	})
}

func (r *Router) handlePhoto(ctx context.Context, userID int64, msg *telegram.Message) {
	// Telegram lists photo sizes smallest first; take the largest.
	fileID := msg.Photo[len(msg.Photo)-1].FileID
	blob, err := r.fetcher.Fetch(ctx, fileID, photoMimeType)
	if err != nil {
		r.logger.Warn("telegram_photo_fetch_error", "chat_id", msg.Chat.ID, "error", err.Error())
		if _, err := r.chat.SendMessage(ctx, msg.Chat.ID, photoFailureText); err != nil {
			r.logger.Warn("telegram_send_error", "chat_id", msg.Chat.ID, "error", err.Error())
		}
		return
	}

	r.store.Append(userID, gemini.RoleUser, []gemini.Part{
		gemini.TextPart(photoPrompt),
		gemini.BlobPart(blob.MimeType, blob.Data),
	})

	_, _ = r.responder.Respond(ctx, RespondRequest{
		UserID:       userID,
		ChatID:       msg.Chat.ID,
		Request:      gemini.MultimodalRequest(r.store.Get(userID)),
		FailureReply: photoFailureText,
	})
}

func (r *Router) handleDocument(ctx context.Context, userID int64, msg *telegram.Message) {
	doc := msg.Document
	blob, err := r.fetcher.FetchDocument(ctx, doc.FileID, doc.MimeType)
	if err != nil {
		var unsupported *UnsupportedMimeTypeError
		if errors.As(err, &unsupported) {
			reply := fmt.Sprintf(unsupportedMimeFmt, unsupported.MimeType)
			if _, err := r.chat.SendMessage(ctx, msg.Chat.ID, reply); err != nil {
				r.logger.Warn("telegram_send_error", "chat_id", msg.Chat.ID, "error", err.Error())
			}
			return
		}
		r.logger.Warn("telegram_document_fetch_error", "chat_id", msg.Chat.ID, "error", err.Error())
		if _, err := r.chat.SendMessage(ctx, msg.Chat.ID, documentFailureText); err != nil {
			r.logger.Warn("telegram_send_error", "chat_id", msg.Chat.ID, "error", err.Error())
		}
		return
	}

	// Reuse the user's latest text as the question about the file.
	prompt := r.store.LastUserText(userID)
	if prompt == "" {
		prompt = documentPrompt
	}

	r.store.Append(userID, gemini.RoleUser, []gemini.Part{
		gemini.TextPart(prompt),
		gemini.BlobPart(blob.MimeType, blob.Data),
	})

	_, _ = r.responder.Respond(ctx, RespondRequest{
		UserID:       userID,
		ChatID:       msg.Chat.ID,
		Request:      gemini.MultimodalRequest(r.store.Get(userID)),
		FailureReply: documentFailureText,
	})
}

// handleVoice assembles a prompt from the voice note alone. The voice turn
// deliberately bypasses stored history and is never appended to it; only
// the model's answer is recorded.
func (r *Router) handleVoice(ctx context.Context, userID int64, msg *telegram.Message) {
	voice := msg.Voice
	blob, err := r.fetcher.Fetch(ctx, voice.FileID, voice.MimeType)
	if err != nil {
		r.logger.Warn("telegram_voice_fetch_error", "chat_id", msg.Chat.ID, "error", err.Error())
		if _, err := r.chat.SendMessage(ctx, msg.Chat.ID, voiceFailureText); err != nil {
			r.logger.Warn("telegram_send_error", "chat_id", msg.Chat.ID, "error", err.Error())
		}
		return
	}

	contents := []gemini.Content{{
		Role: gemini.RoleUser,
		Parts: []gemini.Part{
			gemini.TextPart(voicePrompt),
			gemini.BlobPart(blob.MimeType, blob.Data),
		},
	}}

	_, _ = r.responder.Respond(ctx, RespondRequest{
		UserID:       userID,
		ChatID:       msg.Chat.ID,
		Request:      gemini.MultimodalRequest(contents),
		FailureReply: voiceFailureText,
	})
}
