package gate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"rea/internal/config"
	"rea/internal/domain"
)

// New builds the gate selected by cfg.Mode. in and out are used by the
// console gate; ctx bounds the connection check of the chat gates.
func New(ctx context.Context, cfg config.GateConfig, in io.Reader, out io.Writer, logger *slog.Logger) (domain.HumanGate, error) {
	switch cfg.Mode {
	case "", "console":
		return NewConsole(ConsoleConfig{In: in, Out: out, Logger: logger}), nil
	case "telegram":
		return NewTelegram(TelegramConfig{
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
			Logger: logger,
		})
	case "slack":
		return NewSlack(ctx, SlackConfig{
			BotToken:     cfg.Slack.BotToken,
			ChannelID:    cfg.Slack.ChannelID,
			PollInterval: time.Duration(cfg.Slack.PollSeconds) * time.Second,
			Logger:       logger,
		})
	case "discord":
		return NewDiscord(ctx, DiscordConfig{
			Token:        cfg.Discord.Token,
			ChannelID:    cfg.Discord.ChannelID,
			PollInterval: time.Duration(cfg.Discord.PollSeconds) * time.Second,
			Logger:       logger,
		})
	case "none":
		return Unavailable{}, nil
	}
	return nil, fmt.Errorf("unknown gate mode %q", cfg.Mode)
}
