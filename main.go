package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/calbot/calbot/internal/app"
	"github.com/calbot/calbot/internal/config"
	"github.com/calbot/calbot/internal/database"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// @title calbot API
// @version 1.0
// @description Calendar events shared between a REST API and a Telegram bot.
// @BasePath /

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level != "" {
		logrusLevel, err := log.ParseLevel(level)
		if err != nil {
			log.Fatal(err)
		}
		log.SetLevel(logrusLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Value:   "./config/application.yaml",
	Usage:   "path to the YAML configuration file",
	EnvVars: []string{"CALBOT_CONFIG"},
}

func main() {
	cliApp := &cli.App{
		Name:  "calbot",
		Usage: "Calendar events over REST and Telegram.",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			runCommand("serve", "Serve the REST API.", true, false),
			runCommand("bot", "Run the Telegram bot.", false, true),
			runCommand("run", "Serve the REST API and run the Telegram bot.", true, true),
			migrateCommand(),
		},
		DefaultCommand: "run",
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runCommand(name, usage string, serveHTTP, serveBot bool) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.NewApplication(ctx, c.String(configFlag.Name))
			if err != nil {
				log.Errorf("failed to initialize application: %v", err)
				return err
			}
			defer application.Close()

			return application.Run(ctx, serveHTTP, serveBot)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations and exit.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String(configFlag.Name))
			if err != nil {
				return err
			}
			if err := database.Migrate(cfg.Database); err != nil {
				return err
			}
			log.Info("Migrations applied")
			return nil
		},
	}
}
