package main

import (
	"log"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"

	"github.com/m3rciful/stickerbot/core/buildinfo"
	corecmd "github.com/m3rciful/stickerbot/core/cmd"
	"github.com/m3rciful/stickerbot/internal/bot"
	"github.com/m3rciful/stickerbot/internal/config"
)

type args struct {
	Config  string `arg:"-c,--config,env:CONFIG_PATH" help:"path to the YAML config file"`
	EnvFile string `arg:"--env-file" default:".env" help:"dotenv file loaded before the config"`
}

func (args) Version() string {
	return "stickerbot " + buildinfo.String()
}

func main() {
	var a args
	arg.MustParse(&a)

	if err := godotenv.Load(a.EnvFile); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv %s: %v", a.EnvFile, err)
	}

	err := corecmd.Run(corecmd.Options{
		ConfigPath:        a.Config,
		DefaultConfigPath: "configs/config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			app, err := bot.Bootstrap(cfg.(*config.Config))
			if err != nil {
				return nil, err
			}
			return app, nil
		},
	})
	if err != nil {
		log.Fatalf("stickerbot: %v", err)
	}
}
