package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"portfolio-sim-go/internal/client"
	"portfolio-sim-go/internal/config"
	"portfolio-sim-go/internal/logger"
)

func main() {
	_ = godotenv.Load()

	configDir := flag.String("config", "./configs", "Directory holding config.yml.")
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	connect := func() (API, error) {
		cfg, err := config.LoadConfig(*configDir)
		if err != nil {
			return nil, err
		}
		log, err := logger.NewCLILogger(cfg.Logger.Level)
		if err != nil {
			log = zap.NewNop()
		}
		return client.NewRestClient(&cfg.Client, log), nil
	}
	for _, c := range Commands(connect, os.Stdout) {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
