// db.go
//
// Database bootstrap for the cricket top-10 API.
// Responsibilities:
//   - Opening the SQLite database with safe defaults (WAL, busy timeout,
//     foreign keys).
//   - Seeding a default question when the catalog is empty so the service
//     is playable out of the box.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/anujbohra03/cricket-top10-api/internal/game"
	"github.com/anujbohra03/cricket-top10-api/internal/store"
)

// openDB opens (and creates if missing) a SQLite database file.
// Ensures the parent directory exists for relative DSNs (e.g. ./data/app.db),
// configures busy timeout and WAL journaling, and enforces foreign keys.
func openDB(dsn string) (*sql.DB, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

// defaultAnswers is the seed answer set for a fresh install.
var defaultAnswers = []game.AnswerInput{
	{Player: "Sachin Tendulkar", Rank: 1},
	{Player: "Virat Kohli", Rank: 2},
	{Player: "Ricky Ponting", Rank: 3},
	{Player: "Jacques Kallis", Rank: 4},
	{Player: "Kumar Sangakkara", Rank: 5},
	{Player: "Mahela Jayawardene", Rank: 6},
	{Player: "Rahul Dravid", Rank: 7},
	{Player: "Brian Lara", Rank: 8},
	{Player: "AB de Villiers", Rank: 9},
	{Player: "MS Dhoni", Rank: 10},
}

// seedDefaultQuestion inserts the default question when the catalog is empty.
func seedDefaultQuestion(ctx context.Context, st *store.Store, svc *game.Service) error {
	has, err := st.HasQuestions(ctx)
	if err != nil {
		return fmt.Errorf("check catalog: %w", err)
	}
	if has {
		return nil
	}
	if _, err := svc.CreateQuestion(ctx, "Top 10 ODI run scorers (all time)", defaultAnswers); err != nil {
		return fmt.Errorf("seed question: %w", err)
	}
	log.Warn().Msg("seeded default question because the questions table was empty")
	return nil
}
