package app

import (
	"github.com/calbot/calbot/internal/config"
	"github.com/calbot/calbot/internal/event_bus"
	"github.com/calbot/calbot/internal/utils"
	"github.com/calbot/calbot/pkg/chat"
	"github.com/calbot/calbot/pkg/event"
	"github.com/calbot/calbot/pkg/user"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	EventBus *event_bus.EventBus
	Clock    utils.Clock

	UserRepo     user.Repo
	UserRegistry user.Registry

	EventRepo    event.Repository
	EventService event.EventService
	QueryService event.QueryService
	EventHandler *event.EventHandler

	ChatMachine *chat.Machine
	ChatBot     *chat.Bot
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}
	location := cfg.Chat.Location()

	deps.EventBus = event_bus.NewEventBus()
	event.SubscribeAuditLog(deps.EventBus)
	deps.Clock = utils.SystemClock{}

	deps.UserRepo = user.NewUserRepo(db)
	deps.UserRegistry = user.NewRegistry(deps.UserRepo)

	deps.EventRepo = event.NewRepository(db)
	deps.EventService = event.NewEventService(deps.EventRepo, deps.EventBus)
	deps.QueryService = event.NewQueryService(deps.EventRepo, deps.Clock, location)
	deps.EventHandler = event.NewEventHandler(deps.EventService, deps.QueryService, location)

	deps.ChatMachine = chat.NewMachine(deps.UserRegistry, deps.EventService, location, cfg.Chat.SkipWord)
	deps.ChatBot = chat.NewBot(deps.ChatMachine, deps.UserRegistry, deps.QueryService, location)

	return deps
}
