package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/bot"
	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/gemini"
	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/logutil"
	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/session"
	"github.com/maxxxfraj/Telegram-bot-Google-Gemini-Ai/internal/telegram"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot (long polling)",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(flagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or GEMBOT_TELEGRAM_BOT_TOKEN)")
			}
			apiKey := strings.TrimSpace(flagOrViperString(cmd, "gemini-api-key", "gemini.api_key"))
			if apiKey == "" {
				return fmt.Errorf("missing gemini.api_key (set via --gemini-api-key or GEMBOT_GEMINI_API_KEY)")
			}
			allowedUserID := flagOrViperInt64(cmd, "allowed-user-id", "telegram.allowed_user_id")
			if allowedUserID <= 0 {
				return fmt.Errorf("missing telegram.allowed_user_id (set via --allowed-user-id or GEMBOT_TELEGRAM_ALLOWED_USER_ID)")
			}

			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			pollTimeout := flagOrViperDuration(cmd, "poll-timeout", "telegram.poll_timeout")
			if pollTimeout <= 0 {
				pollTimeout = 30 * time.Second
			}
			idleTimeout := flagOrViperDuration(cmd, "idle-timeout", "session.idle_timeout")
			if idleTimeout <= 0 {
				idleTimeout = 5 * time.Minute
			}

			api := telegram.New(&http.Client{Timeout: 60 * time.Second}, "https://api.telegram.org", token)

			client := gemini.New(
				viper.GetString("gemini.endpoint"),
				apiKey,
				viper.GetString("gemini.model"),
			)
			if timeout := viper.GetDuration("gemini.request_timeout"); timeout > 0 {
				client.HTTP.Timeout = timeout
			}

			timers := session.NewTimerRegistry()
			store := session.NewStore(timers)
			fetcher := bot.NewFetcher(api, viper.GetInt64("telegram.max_file_bytes"))
			responder := bot.NewResponder(store, api, func(ctx context.Context, req gemini.GenerateRequest) (bot.TextStream, error) {
				return client.StreamGenerateContent(ctx, req)
			}, logger)

			ctx := cmd.Context()
			router := bot.NewRouter(ctx, bot.Config{
				AllowedUserID: allowedUserID,
				IdleTimeout:   idleTimeout,
				MaxConcurrent: viper.GetInt("bot.max_concurrency"),
				QueueSize:     viper.GetInt("bot.queue_size"),
			}, api, store, timers, fetcher, responder, logger)

			me, err := api.GetMe(ctx)
			if err != nil {
				return err
			}
			logger.Info("telegram_start",
				"bot_username", me.Username,
				"allowed_user_id", allowedUserID,
				"model", client.Model,
				"idle_timeout", idleTimeout.String(),
			)

			return pollLoop(ctx, api, router, logger, pollTimeout)
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().String("gemini-api-key", "", "Gemini API key.")
	cmd.Flags().Int64("allowed-user-id", 0, "The only Telegram user id the bot answers.")
	cmd.Flags().Duration("poll-timeout", 30*time.Second, "getUpdates long-poll timeout.")
	cmd.Flags().Duration("idle-timeout", 5*time.Minute, "Idle period after which a session is cleared.")

	return cmd
}

func pollLoop(ctx context.Context, api *telegram.API, router *bot.Router, logger *slog.Logger, pollTimeout time.Duration) error {
	var offset int64
	for {
		updates, nextOffset, err := api.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("telegram_stop", "reason", "context_canceled")
				return nil
			}
			if telegram.IsPollTimeoutError(err) {
				logger.Debug("telegram_get_updates_timeout", "error", err.Error())
			} else {
				logger.Warn("telegram_get_updates_error", "error", err.Error())
			}
			time.Sleep(1 * time.Second)
			continue
		}
		offset = nextOffset

		for _, u := range updates {
			if u.Message == nil {
				continue
			}
			router.Dispatch(ctx, u.Message)
		}
	}
}
