// internal/store/store.go
//
// SQL persistence for the game core.
// Responsibilities:
//   - QuestionCatalog: question/answer lookups (read-only at play time).
//   - SessionStore: get-or-create and reassignment of per-token sessions.
//   - GuessLedger: append-only accepted guesses, unique per
//     (session, question, normalized name).
//
// Notes:
//   - Store methods run on the handle passed to New; WithTx rebinds a Store
//     to a transaction so the evaluator can make its guess path atomic.
//   - SQLite unique-constraint violations on the ledger are translated into
//     game.ErrDuplicateGuess; the evaluator resolves that into "already
//     guessed" rather than surfacing a write conflict.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/anujbohra03/cricket-top10-api/internal/game"
)

// Querier is the subset of database/sql satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store bundles the catalog, session, and ledger repositories over one
// SQLite handle.
type Store struct {
	db *sql.DB
	q  Querier
}

// New constructs a Store running its statements directly on db.
func New(db *sql.DB) *Store { return &Store{db: db, q: db} }

// WithTx returns a Store whose statements run on tx.
func (s *Store) WithTx(tx *sql.Tx) *Store { return &Store{db: s.db, q: tx} }

// InTx runs fn with a Store bound to one transaction. The transaction
// commits iff fn returns nil; any error rolls the whole unit back.
func (s *Store) InTx(ctx context.Context, fn func(game.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(s.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// ------------------------------ catalog ------------------------------------

// GetQuestion loads a question by id. Returns game.ErrQuestionNotFound when
// no row exists.
func (s *Store) GetQuestion(ctx context.Context, id string) (*game.Question, error) {
	var q game.Question
	err := s.q.QueryRowContext(ctx, `SELECT id, text FROM questions WHERE id=?`, id).
		Scan(&q.ID, &q.Text)
	if err == sql.ErrNoRows {
		return nil, game.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	return &q, nil
}

// ListQuestions returns all questions ordered by text.
func (s *Store) ListQuestions(ctx context.Context) ([]game.Question, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, text FROM questions ORDER BY text`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	out := []game.Question{}
	for rows.Next() {
		var q game.Question
		if err := rows.Scan(&q.ID, &q.Text); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// QuestionIDs returns every question id, in no particular order.
func (s *Store) QuestionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id FROM questions`)
	if err != nil {
		return nil, fmt.Errorf("question ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AnswersForQuestion returns the full answer set ordered by rank.
func (s *Store) AnswersForQuestion(ctx context.Context, questionID string) ([]game.Answer, error) {
	rows, err := s.q.QueryContext(ctx, `
        SELECT id, question_id, player, normalized_player, rank
        FROM answers WHERE question_id=? ORDER BY rank`, questionID)
	if err != nil {
		return nil, fmt.Errorf("answers for question: %w", err)
	}
	defer rows.Close()

	out := []game.Answer{}
	for rows.Next() {
		var a game.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Player, &a.NormalizedPlayer, &a.Rank); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountAnswers returns the number of answers a question holds.
func (s *Store) CountAnswers(ctx context.Context, questionID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM answers WHERE question_id=?`, questionID).Scan(&n)
	return n, err
}

// FindAnswer looks up an answer by its normalized name within a question.
// Returns (nil, nil) when no answer matches.
func (s *Store) FindAnswer(ctx context.Context, questionID, normalized string) (*game.Answer, error) {
	var a game.Answer
	err := s.q.QueryRowContext(ctx, `
        SELECT id, question_id, player, normalized_player, rank
        FROM answers WHERE question_id=? AND normalized_player=?`,
		questionID, normalized).
		Scan(&a.ID, &a.QuestionID, &a.Player, &a.NormalizedPlayer, &a.Rank)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find answer: %w", err)
	}
	return &a, nil
}

// CreateQuestion inserts a question and its answers.
func (s *Store) CreateQuestion(ctx context.Context, q game.Question, answers []game.Answer) error {
	if _, err := s.q.ExecContext(ctx,
		`INSERT INTO questions (id, text) VALUES (?,?)`, q.ID, q.Text); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	for _, a := range answers {
		if _, err := s.q.ExecContext(ctx, `
            INSERT INTO answers (id, question_id, player, normalized_player, rank)
            VALUES (?,?,?,?,?)`,
			a.ID, q.ID, a.Player, a.NormalizedPlayer, a.Rank); err != nil {
			return fmt.Errorf("insert answer %q: %w", a.Player, err)
		}
	}
	return nil
}

// DeleteQuestion removes a question, its answers (FK cascade), and any
// ledger rows recorded against it.
func (s *Store) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM questions WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return game.ErrQuestionNotFound
	}
	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM session_guesses WHERE question_id=?`, id); err != nil {
		return fmt.Errorf("delete question guesses: %w", err)
	}
	return nil
}

// HasQuestions reports whether the catalog holds at least one question.
func (s *Store) HasQuestions(ctx context.Context) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM questions`).Scan(&n)
	return n > 0, err
}

// ------------------------------ sessions -----------------------------------

// GetSession loads a session row by token. Returns (nil, nil) when no row
// exists so callers can project a default state without materializing one.
func (s *Store) GetSession(ctx context.Context, token string) (*game.Session, error) {
	var sess game.Session
	var created, updated string
	err := s.q.QueryRowContext(ctx, `
        SELECT token, question_id, lives, created_at, updated_at
        FROM sessions WHERE token=?`, token).
		Scan(&sess.Token, &sess.QuestionID, &sess.Lives, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339, created)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &sess, nil
}

// GetOrCreateSession resolves the session for (token, questionID).
//   - Missing row: create with initialLives and an empty ledger.
//   - Row on a different question: reassignment — point at the new question,
//     restore lives, and delete all of the session's ledger rows, atomically
//     with the caller's transaction.
//   - Row on the same question: returned unchanged.
func (s *Store) GetOrCreateSession(ctx context.Context, token, questionID string, initialLives int) (*game.Session, error) {
	sess, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}

	ts := now()
	if sess == nil {
		sess = &game.Session{Token: token, QuestionID: questionID, Lives: initialLives}
		if _, err := s.q.ExecContext(ctx, `
            INSERT INTO sessions (token, question_id, lives, created_at, updated_at)
            VALUES (?,?,?,?,?)`, token, questionID, initialLives, ts, ts); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return sess, nil
	}

	if sess.QuestionID != questionID {
		if _, err := s.q.ExecContext(ctx, `
            UPDATE sessions SET question_id=?, lives=?, updated_at=? WHERE token=?`,
			questionID, initialLives, ts, token); err != nil {
			return nil, fmt.Errorf("reassign session: %w", err)
		}
		// Reassignment clears every guess the session ever made, not only
		// the ones for the previous question.
		if err := s.DeleteGuessesForSession(ctx, token); err != nil {
			return nil, err
		}
		sess.QuestionID = questionID
		sess.Lives = initialLives
	}
	return sess, nil
}

// ResetSession restores lives without changing the assigned question.
func (s *Store) ResetSession(ctx context.Context, token string, initialLives int) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE sessions SET lives=?, updated_at=? WHERE token=?`,
		initialLives, now(), token)
	if err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}

// DecrementLives takes one life, clamped at zero, and returns the new count.
func (s *Store) DecrementLives(ctx context.Context, token string) (int, error) {
	if _, err := s.q.ExecContext(ctx, `
        UPDATE sessions SET lives = MAX(lives - 1, 0), updated_at=? WHERE token=?`,
		now(), token); err != nil {
		return 0, fmt.Errorf("decrement lives: %w", err)
	}
	var lives int
	if err := s.q.QueryRowContext(ctx,
		`SELECT lives FROM sessions WHERE token=?`, token).Scan(&lives); err != nil {
		return 0, fmt.Errorf("read lives: %w", err)
	}
	return lives, nil
}

// ------------------------------ guess ledger -------------------------------

// HasGuess reports whether the ledger already holds this normalized name
// for (session, question).
func (s *Store) HasGuess(ctx context.Context, token, questionID, normalized string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
        SELECT COUNT(1) FROM session_guesses
        WHERE session_token=? AND question_id=? AND normalized_player=?`,
		token, questionID, normalized).Scan(&n)
	return n > 0, err
}

// InsertGuess appends an accepted guess to the ledger. A violation of the
// unique index on (session_token, question_id, normalized_player) is
// returned as ErrDuplicateGuess.
func (s *Store) InsertGuess(ctx context.Context, token, questionID, normalized string) error {
	_, err := s.q.ExecContext(ctx, `
        INSERT INTO session_guesses (id, session_token, question_id, normalized_player, created_at)
        VALUES (?,?,?,?,?)`,
		uuid.NewString(), token, questionID, normalized, now())
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) &&
			(sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
			return game.ErrDuplicateGuess
		}
		return fmt.Errorf("insert guess: %w", err)
	}
	return nil
}

// DeleteGuessesForSession clears the whole ledger for a session token.
func (s *Store) DeleteGuessesForSession(ctx context.Context, token string) error {
	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM session_guesses WHERE session_token=?`, token); err != nil {
		return fmt.Errorf("delete session guesses: %w", err)
	}
	return nil
}

// CorrectGuesses joins the ledger against the answer set for the session's
// question, canonical name and rank, ordered by rank.
func (s *Store) CorrectGuesses(ctx context.Context, token, questionID string) ([]game.FoundAnswer, error) {
	rows, err := s.q.QueryContext(ctx, `
        SELECT a.player, a.rank
        FROM session_guesses g
        JOIN answers a
          ON a.question_id = g.question_id
         AND a.normalized_player = g.normalized_player
        WHERE g.session_token=? AND g.question_id=?
        ORDER BY a.rank`, token, questionID)
	if err != nil {
		return nil, fmt.Errorf("correct guesses: %w", err)
	}
	defer rows.Close()

	out := []game.FoundAnswer{}
	for rows.Next() {
		var fa game.FoundAnswer
		if err := rows.Scan(&fa.Player, &fa.Rank); err != nil {
			return nil, err
		}
		out = append(out, fa)
	}
	return out, rows.Err()
}
