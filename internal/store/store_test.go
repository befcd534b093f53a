package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/anujbohra03/cricket-top10-api/internal/game"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func mustCreateQuestion(t *testing.T, st *Store, id, text string, players ...string) {
	t.Helper()
	q := game.Question{ID: id, Text: text}
	answers := make([]game.Answer, 0, len(players))
	for i, p := range players {
		answers = append(answers, game.Answer{
			ID:               id + "-a" + string(rune('0'+i)),
			QuestionID:       id,
			Player:           p,
			NormalizedPlayer: game.Normalize(p),
			Rank:             i + 1,
		})
	}
	if err := st.CreateQuestion(context.Background(), q, answers); err != nil {
		t.Fatalf("create question: %v", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := Migrate(db); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestListQuestionsOrderedByText(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateQuestion(t, st, "q2", "Zebra question", "A")
	mustCreateQuestion(t, st, "q1", "Aardvark question", "B")

	qs, err := st.ListQuestions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(qs) != 2 || qs[0].Text != "Aardvark question" || qs[1].Text != "Zebra question" {
		t.Fatalf("unexpected order: %+v", qs)
	}
}

func TestGetQuestionNotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetQuestion(context.Background(), "missing")
	if !errors.Is(err, game.ErrQuestionNotFound) {
		t.Fatalf("err = %v, want ErrQuestionNotFound", err)
	}
}

func TestGetOrCreateSessionLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateQuestion(t, st, "q1", "first", "A")
	mustCreateQuestion(t, st, "q2", "second", "B")

	sess, err := st.GetOrCreateSession(ctx, "tok", "q1", 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.QuestionID != "q1" || sess.Lives != 3 {
		t.Fatalf("fresh session: %+v", sess)
	}

	// Same question: returned unchanged, even after mutations.
	if _, err := st.DecrementLives(ctx, "tok"); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if err := st.InsertGuess(ctx, "tok", "q1", "a"); err != nil {
		t.Fatalf("insert guess: %v", err)
	}
	sess, err = st.GetOrCreateSession(ctx, "tok", "q1", 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.Lives != 2 {
		t.Fatalf("lives = %d, want 2", sess.Lives)
	}

	// Different question: lives restored, ledger cleared.
	sess, err = st.GetOrCreateSession(ctx, "tok", "q2", 3)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if sess.QuestionID != "q2" || sess.Lives != 3 {
		t.Fatalf("reassigned session: %+v", sess)
	}
	dup, err := st.HasGuess(ctx, "tok", "q1", "a")
	if err != nil {
		t.Fatalf("has guess: %v", err)
	}
	if dup {
		t.Fatal("reassignment left old ledger rows behind")
	}
}

func TestInsertGuessUniqueConstraint(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateQuestion(t, st, "q1", "first", "A")
	if _, err := st.GetOrCreateSession(ctx, "tok", "q1", 3); err != nil {
		t.Fatalf("session: %v", err)
	}

	if err := st.InsertGuess(ctx, "tok", "q1", "a"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := st.InsertGuess(ctx, "tok", "q1", "a")
	if !errors.Is(err, game.ErrDuplicateGuess) {
		t.Fatalf("err = %v, want ErrDuplicateGuess", err)
	}

	// Same name under a different question or session is a new row.
	mustCreateQuestion(t, st, "q2", "second", "A")
	if err := st.InsertGuess(ctx, "tok", "q2", "a"); err != nil {
		t.Fatalf("insert for other question: %v", err)
	}
	if _, err := st.GetOrCreateSession(ctx, "tok2", "q1", 3); err != nil {
		t.Fatalf("session: %v", err)
	}
	if err := st.InsertGuess(ctx, "tok2", "q1", "a"); err != nil {
		t.Fatalf("insert for other session: %v", err)
	}
}

func TestDecrementLivesClampsAtZero(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateQuestion(t, st, "q1", "first", "A")
	if _, err := st.GetOrCreateSession(ctx, "tok", "q1", 1); err != nil {
		t.Fatalf("session: %v", err)
	}

	for i := 0; i < 3; i++ {
		lives, err := st.DecrementLives(ctx, "tok")
		if err != nil {
			t.Fatalf("decrement %d: %v", i, err)
		}
		if lives < 0 {
			t.Fatalf("lives went negative: %d", lives)
		}
	}
}

func TestCorrectGuessesJoinOrderedByRank(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateQuestion(t, st, "q1", "first", "First Player", "Second Player", "Third Player")
	if _, err := st.GetOrCreateSession(ctx, "tok", "q1", 3); err != nil {
		t.Fatalf("session: %v", err)
	}

	// Insert out of rank order, plus a guess with no matching answer
	// (possible after an answer set is edited); the join drops it.
	for _, g := range []string{"third player", "first player", "stale entry"} {
		if err := st.InsertGuess(ctx, "tok", "q1", g); err != nil {
			t.Fatalf("insert %q: %v", g, err)
		}
	}

	found, err := st.CorrectGuesses(ctx, "tok", "q1")
	if err != nil {
		t.Fatalf("correct guesses: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("found = %d, want 2", len(found))
	}
	if found[0].Player != "First Player" || found[0].Rank != 1 ||
		found[1].Player != "Third Player" || found[1].Rank != 3 {
		t.Fatalf("unexpected projection: %+v", found)
	}
}

func TestDeleteQuestionCascades(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateQuestion(t, st, "q1", "first", "A", "B")
	if _, err := st.GetOrCreateSession(ctx, "tok", "q1", 3); err != nil {
		t.Fatalf("session: %v", err)
	}
	if err := st.InsertGuess(ctx, "tok", "q1", "a"); err != nil {
		t.Fatalf("insert guess: %v", err)
	}

	if err := st.DeleteQuestion(ctx, "q1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.GetQuestion(ctx, "q1"); !errors.Is(err, game.ErrQuestionNotFound) {
		t.Fatalf("question still present: %v", err)
	}
	answers, err := st.AnswersForQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if len(answers) != 0 {
		t.Fatalf("answers not cascaded: %+v", answers)
	}
	dup, err := st.HasGuess(ctx, "tok", "q1", "a")
	if err != nil {
		t.Fatalf("has guess: %v", err)
	}
	if dup {
		t.Fatal("guesses not cleaned up with question")
	}

	if err := st.DeleteQuestion(ctx, "q1"); !errors.Is(err, game.ErrQuestionNotFound) {
		t.Fatalf("second delete err = %v, want ErrQuestionNotFound", err)
	}
}

func TestAnswersUniquePerQuestion(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	q := game.Question{ID: "q1", Text: "first"}
	answers := []game.Answer{
		{ID: "a1", QuestionID: "q1", Player: "A", NormalizedPlayer: "a", Rank: 1},
		{ID: "a2", QuestionID: "q1", Player: " a ", NormalizedPlayer: "a", Rank: 2},
	}
	if err := st.CreateQuestion(ctx, q, answers); err == nil {
		t.Fatal("duplicate normalized answer accepted")
	}
}
