package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("prepctl failed")
		stop()
		os.Exit(1)
	}
}
