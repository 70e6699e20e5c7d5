package slack

import (
	"github.com/slack-go/slack"

	"github.com/lorrc/service-desk-engine/internal/config"
)

// NewClient builds the Web API client. The app-level token enables Socket Mode.
func NewClient(cfg config.SlackConfig, opts ...slack.Option) *slack.Client {
	opts = append([]slack.Option{slack.OptionAppLevelToken(cfg.AppToken)}, opts...)
	return slack.New(cfg.BotToken, opts...)
}
