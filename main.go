package main

import (
	"context"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anujbohra03/cricket-top10-api/internal/game"
	"github.com/anujbohra03/cricket-top10-api/internal/httpserver"
	"github.com/anujbohra03/cricket-top10-api/internal/store"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	db, err := openDB(getEnv("DB_PATH", "./data/app.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := store.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	st := store.New(db)
	svc := game.NewService(st, game.Options{
		InitialLives:   envInt("INITIAL_LIVES", 3),
		MaxGuessLength: envInt("MAX_GUESS_LENGTH", 50),
	})

	if err := seedDefaultQuestion(context.Background(), st, svc); err != nil {
		log.Fatal().Err(err).Msg("failed to seed database")
	}

	srv := httpserver.New(svc)
	port := getEnv("PORT", "5150")
	log.Info().Str("port", port).Msg("starting cricket-top10-api")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
