package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "CALBOT_"

type Application struct {
	Server   Server   `koanf:"server"`
	Database Database `koanf:"db"`
	Telegram Telegram `koanf:"telegram"`
	Chat     Chat     `koanf:"chat"`
}

type Server struct {
	Port            int `koanf:"port"`
	ReadTimeoutSec  int `koanf:"readtimeoutsec"`
	WriteTimeoutSec int `koanf:"writetimeoutsec"`
	IdleTimeoutSec  int `koanf:"idletimeoutsec"`
}

type Database struct {
	// Url takes precedence over the discrete connection fields when set.
	Url    string `koanf:"url"`
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

type Telegram struct {
	Token          string `koanf:"token"`
	Debug          bool   `koanf:"debug"`
	PollTimeoutSec int    `koanf:"polltimeoutsec"`
}

type Chat struct {
	SkipWord string `koanf:"skipword"`
	Timezone string `koanf:"timezone"`
}

// Location resolves the configured chat timezone, falling back to the process local zone.
func (c Chat) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Warnf("unknown timezone %q, using local time: %v", c.Timezone, err)
		return time.Local
	}
	return loc
}

func defaults() Application {
	return Application{
		Server: Server{
			Port:            5000,
			ReadTimeoutSec:  15,
			WriteTimeoutSec: 15,
			IdleTimeoutSec:  60,
		},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "calendar_user",
			Pass:   "",
			Name:   "calendar_db",
			Schema: "public",
		},
		Telegram: Telegram{
			PollTimeoutSec: 60,
		},
		Chat: Chat{
			SkipWord: "skip",
		},
	}
}

func Load(path string) (Application, error) {
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}

	var k = koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, envPrefix)), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	applyLegacyEnv(&app)

	return app, nil
}

// applyLegacyEnv honours the unprefixed variable names used by older deployments.
func applyLegacyEnv(app *Application) {
	if app.Database.Url == "" {
		app.Database.Url = os.Getenv("DATABASE_URL")
	}
	if app.Telegram.Token == "" {
		app.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
}
