package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.allowed_user_id", int64(0))
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.max_file_bytes", int64(20*1024*1024))

	viper.SetDefault("gemini.endpoint", "https://generativelanguage.googleapis.com")
	viper.SetDefault("gemini.model", "gemini-1.5-flash")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.request_timeout", 5*time.Minute)

	viper.SetDefault("session.idle_timeout", 5*time.Minute)

	viper.SetDefault("bot.max_concurrency", 3)
	viper.SetDefault("bot.queue_size", 16)

	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
}
