package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/InverseCodex/agrivision-website-v2/internal/agent"
)

func main() {
	var (
		baseURL  = flag.String("server", "http://localhost:8080", "backend base URL")
		userID   = flag.String("user", "", "owner user id to poll missions for")
		pairCode = flag.String("pair-code", "", "redeem a pair code before polling")
		outPath  = flag.String("out", "mission.json", "where to save the mission payload")
		interval = flag.Duration("interval", 2*time.Second, "poll interval")
		loop     = flag.Bool("loop", false, "keep polling after a mission is received")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *userID == "" {
		log.Fatal().Msg("-user is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := agent.New(*baseURL, *userID, *outPath, *interval)

	if *pairCode != "" {
		if _, _, err := a.Connect(ctx, *pairCode); err != nil {
			log.Fatal().Err(err).Msg("Pairing failed")
		}
	}

	for {
		if err := a.Run(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info().Msg("Agent stopped")
				return
			}
			log.Error().Err(err).Msg("Mission handling failed")
		}
		if !*loop {
			return
		}
	}
}
