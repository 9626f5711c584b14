package main

import (
	"flag"
	"os"

	"github.com/orialabs/voicedeck/internal/database"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure zerolog for pretty console output
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		command     string
		steps       int
		databaseURL string
	)

	flag.StringVar(&command, "command", "up", "Migration command: up, down")
	flag.IntVar(&steps, "steps", 1, "Number of migrations to roll back (down only)")
	flag.StringVar(&databaseURL, "database", "", "Database URL (overrides DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable or -database flag is required")
	}

	log.Info().
		Str("command", command).
		Msg("Starting migration")

	var err error
	switch command {
	case "up":
		err = database.RunMigrations(databaseURL)
	case "down":
		err = database.RollbackMigration(databaseURL, steps)
	default:
		log.Fatal().Str("command", command).Msg("Unknown migration command")
	}

	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	log.Info().Msg("Migration completed successfully")
}
