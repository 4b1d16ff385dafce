package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/calbot/calbot/internal/config"
	"github.com/calbot/calbot/pkg/chat"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Poller receives updates from the Bot API by long polling.
type Poller struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
	dispatcher  *Dispatcher
}

func NewPoller(cfg config.Telegram, handler Handler) (*Poller, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is not configured")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	api.Debug = cfg.Debug
	log.Infof("Authorized on telegram account %s", api.Self.UserName)

	return &Poller{
		api:         api,
		pollTimeout: cfg.PollTimeoutSec,
		dispatcher:  NewDispatcher(handler, api),
	}, nil
}

// RegisterCommands publishes the command menu shown by chat clients.
func (p *Poller) RegisterCommands(commands []chat.Command) error {
	_, err := p.api.Request(tgbotapi.NewSetMyCommands(botCommands(commands)...))
	if err != nil {
		return fmt.Errorf("failed to register bot commands: %w", err)
	}
	return nil
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = p.pollTimeout
	updates := p.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		log.Info("Stopping telegram polling")
		p.api.StopReceivingUpdates()
	}()

	log.Info("Telegram bot started")
	p.dispatcher.Run(ctx, updates)
}

func botCommands(commands []chat.Command) []tgbotapi.BotCommand {
	result := make([]tgbotapi.BotCommand, 0, len(commands))
	for _, c := range commands {
		result = append(result, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	return result
}
