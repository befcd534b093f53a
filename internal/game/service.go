// internal/game/service.go
//
// Game engine for the top-10 guessing game.
// Responsibilities:
//   - Resolve or assign a session's current question (random pick excludes
//     the previous question when the catalog allows it).
//   - Evaluate guesses: normalization, duplicate detection, correctness
//     lookup, life decrement, and the active/won/lost transition — all
//     inside one transaction per guess.
//   - Project the player-visible state (lives, found, ranked correct set).
//
// Notes:
//   - The ledger's unique index is the last line of defense against a
//     duplicate-guess race; a constraint violation on insert resolves into
//     the normal "already guessed" result.
//   - A session with zero lives accepts no further guesses.
package game

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Store is the persistence surface the engine drives. Implemented by
// internal/store over SQLite.
type Store interface {
	GetQuestion(ctx context.Context, id string) (*Question, error)
	ListQuestions(ctx context.Context) ([]Question, error)
	QuestionIDs(ctx context.Context) ([]string, error)
	AnswersForQuestion(ctx context.Context, questionID string) ([]Answer, error)
	CountAnswers(ctx context.Context, questionID string) (int, error)
	FindAnswer(ctx context.Context, questionID, normalized string) (*Answer, error)
	CreateQuestion(ctx context.Context, q Question, answers []Answer) error
	DeleteQuestion(ctx context.Context, id string) error

	GetSession(ctx context.Context, token string) (*Session, error)
	GetOrCreateSession(ctx context.Context, token, questionID string, initialLives int) (*Session, error)
	ResetSession(ctx context.Context, token string, initialLives int) error
	DecrementLives(ctx context.Context, token string) (int, error)

	HasGuess(ctx context.Context, token, questionID, normalized string) (bool, error)
	InsertGuess(ctx context.Context, token, questionID, normalized string) error
	DeleteGuessesForSession(ctx context.Context, token string) error
	CorrectGuesses(ctx context.Context, token, questionID string) ([]FoundAnswer, error)
}

// Service orchestrates the session/guess state machine over a Store.
type Service struct {
	st   Storage
	opts Options
}

// Storage is what Service needs from the persistence layer: plain reads
// plus the ability to run a function inside one transaction.
type Storage interface {
	Store
	// InTx runs fn with a Store bound to a single transaction; the
	// transaction commits iff fn returns nil.
	InTx(ctx context.Context, fn func(Store) error) error
}

// NewService constructs the engine.
func NewService(st Storage, opts Options) *Service {
	if opts.InitialLives <= 0 {
		opts.InitialLives = DefaultOptions().InitialLives
	}
	if opts.MaxGuessLength <= 0 {
		opts.MaxGuessLength = DefaultOptions().MaxGuessLength
	}
	return &Service{st: st, opts: opts}
}

// Options exposes the engine configuration (used by adapters for defaults).
func (s *Service) Options() Options { return s.opts }

// ------------------------------ questions ----------------------------------

// CurrentQuestion resolves the question a session should be playing.
//   - preferredID set: that question must exist and the session is resolved
//     to it (reassignment semantics apply).
//   - session already assigned to a live question: returned unchanged.
//   - otherwise: a uniform random pick, excluding the session's previous
//     question when more than one exists.
func (s *Service) CurrentQuestion(ctx context.Context, token, preferredID string) (*Question, error) {
	if preferredID != "" {
		q, err := s.st.GetQuestion(ctx, preferredID)
		if err != nil {
			if errors.Is(err, ErrQuestionNotFound) {
				return nil, validationf("invalid question id")
			}
			return nil, err
		}
		if err := s.resolveSession(ctx, token, q.ID); err != nil {
			return nil, err
		}
		return q, nil
	}

	sess, err := s.st.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		q, err := s.st.GetQuestion(ctx, sess.QuestionID)
		if err == nil {
			return q, nil
		}
		if !errors.Is(err, ErrQuestionNotFound) {
			return nil, err
		}
		// Assigned question was deleted; fall through to a fresh pick.
	}

	exclude := ""
	if sess != nil {
		exclude = sess.QuestionID
	}
	q, err := s.RandomQuestion(ctx, exclude)
	if err != nil {
		return nil, err
	}
	if err := s.resolveSession(ctx, token, q.ID); err != nil {
		return nil, err
	}
	return q, nil
}

// NextQuestion forces a fresh random question for the session, excluding
// the one it is currently playing when possible.
func (s *Service) NextQuestion(ctx context.Context, token string) (*Question, error) {
	exclude := ""
	if sess, err := s.st.GetSession(ctx, token); err != nil {
		return nil, err
	} else if sess != nil {
		exclude = sess.QuestionID
	}
	q, err := s.RandomQuestion(ctx, exclude)
	if err != nil {
		return nil, err
	}
	if err := s.resolveSession(ctx, token, q.ID); err != nil {
		return nil, err
	}
	return q, nil
}

// Questions lists the catalog in its stable display order.
func (s *Service) Questions(ctx context.Context) ([]Question, error) {
	return s.st.ListQuestions(ctx)
}

// RandomQuestion picks uniformly over all question ids. When excluding is
// set and more than one question exists, the excluded id never comes back.
// Returns ErrNoQuestions on an empty catalog.
func (s *Service) RandomQuestion(ctx context.Context, excluding string) (*Question, error) {
	ids, err := s.st.QuestionIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoQuestions
	}
	if excluding != "" && len(ids) > 1 {
		kept := ids[:0]
		for _, id := range ids {
			if id != excluding {
				kept = append(kept, id)
			}
		}
		ids = kept
	}
	return s.st.GetQuestion(ctx, ids[randomIndex(len(ids))])
}

// Answers returns a question's full ranked answer set (the post-game reveal).
func (s *Service) Answers(ctx context.Context, questionID string) ([]Answer, error) {
	if questionID == "" {
		return nil, validationf("question id is required")
	}
	if _, err := s.st.GetQuestion(ctx, questionID); err != nil {
		if errors.Is(err, ErrQuestionNotFound) {
			return nil, validationf("invalid question id")
		}
		return nil, err
	}
	return s.st.AnswersForQuestion(ctx, questionID)
}

// ------------------------------ guessing -----------------------------------

// Guess evaluates one guess for (token, questionID).
//
// The session resolve, duplicate check, answer lookup, and the resulting
// ledger insert or life decrement all happen in one transaction: either the
// guess and its side effect land together, or neither does.
func (s *Service) Guess(ctx context.Context, token, questionID, raw string) (*GuessResponse, error) {
	guess := Normalize(raw)
	if guess == "" {
		return nil, validationf("guess cannot be empty")
	}
	if len(guess) > s.opts.MaxGuessLength {
		return nil, validationf(fmt.Sprintf("guess must be %d characters or less", s.opts.MaxGuessLength))
	}
	if _, err := s.st.GetQuestion(ctx, questionID); err != nil {
		if errors.Is(err, ErrQuestionNotFound) {
			return nil, validationf("invalid question id")
		}
		return nil, err
	}

	var result GuessResult
	gameOver := false
	err := s.st.InTx(ctx, func(st Store) error {
		sess, err := st.GetOrCreateSession(ctx, token, questionID, s.opts.InitialLives)
		if err != nil {
			return err
		}

		if sess.Lives <= 0 {
			gameOver = true
			result = GuessResult{Message: "Game over"}
			return nil
		}

		dup, err := st.HasGuess(ctx, token, questionID, guess)
		if err != nil {
			return err
		}
		if dup {
			result = GuessResult{Message: "Already guessed"}
			return nil
		}

		answer, err := st.FindAnswer(ctx, questionID, guess)
		if err != nil {
			return err
		}
		if answer != nil {
			if err := st.InsertGuess(ctx, token, questionID, guess); err != nil {
				if errors.Is(err, ErrDuplicateGuess) {
					// Lost the race against an identical guess; same outcome
					// as the duplicate check above.
					result = GuessResult{Message: "Already guessed"}
					return nil
				}
				return err
			}
			result = GuessResult{
				Correct: true,
				Player:  answer.Player,
				Rank:    answer.Rank,
				Message: "Correct",
			}
			return nil
		}

		if _, err := st.DecrementLives(ctx, token); err != nil {
			return err
		}
		result = GuessResult{Correct: false, Message: "Wrong guess"}
		return nil
	})
	if err != nil {
		return nil, err
	}

	state, err := s.State(ctx, token)
	if err != nil {
		return nil, err
	}
	status := StatusLost
	if !gameOver {
		status, err = s.deriveStatus(ctx, questionID, state)
		if err != nil {
			return nil, err
		}
	}

	log.Debug().
		Str("session", token).
		Str("question", questionID).
		Bool("correct", result.Correct).
		Str("status", status).
		Msg("guess evaluated")

	return &GuessResponse{Result: result, State: *state, GameStatus: status}, nil
}

// deriveStatus maps a projected state to active/won/lost for a question.
func (s *Service) deriveStatus(ctx context.Context, questionID string, state *GameState) (string, error) {
	total, err := s.st.CountAnswers(ctx, questionID)
	if err != nil {
		return "", err
	}
	switch {
	case total > 0 && state.Found >= total:
		return StatusWon, nil
	case state.Lives <= 0:
		return StatusLost, nil
	default:
		return StatusActive, nil
	}
}

// ------------------------------ state & reset ------------------------------

// State projects the player-visible state for a session. A token that has
// never played gets the default state without a row being materialized.
func (s *Service) State(ctx context.Context, token string) (*GameState, error) {
	sess, err := s.st.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return &GameState{
			Lives:          s.opts.InitialLives,
			Found:          0,
			CorrectGuesses: []FoundAnswer{},
		}, nil
	}
	found, err := s.st.CorrectGuesses(ctx, token, sess.QuestionID)
	if err != nil {
		return nil, err
	}
	return &GameState{Lives: sess.Lives, Found: len(found), CorrectGuesses: found}, nil
}

// Reset restores lives and clears the session's ledger without changing the
// token or its question. A missing session is a no-op, not an error.
func (s *Service) Reset(ctx context.Context, token string) error {
	sess, err := s.st.GetSession(ctx, token)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	return s.st.InTx(ctx, func(st Store) error {
		if err := st.ResetSession(ctx, token, s.opts.InitialLives); err != nil {
			return err
		}
		return st.DeleteGuessesForSession(ctx, token)
	})
}

// ------------------------------ authoring ----------------------------------

// AnswerInput is one ranked answer supplied when authoring a question.
type AnswerInput struct {
	Player string `json:"player"`
	Rank   int    `json:"rank"`
}

// CreateQuestion validates and stores a new question with its answer set.
// Ranks must be unique integers in [1, N]; normalized names must be unique
// within the question.
func (s *Service) CreateQuestion(ctx context.Context, text string, answers []AnswerInput) (*Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationf("question text is required")
	}
	if len(answers) == 0 {
		return nil, validationf("answers required")
	}

	ranks := make(map[int]bool, len(answers))
	names := make(map[string]bool, len(answers))
	rows := make([]Answer, 0, len(answers))
	q := Question{ID: uuid.NewString(), Text: text}
	for _, in := range answers {
		player := strings.TrimSpace(in.Player)
		if player == "" {
			return nil, validationf("answer name cannot be empty")
		}
		if in.Rank < 1 || in.Rank > len(answers) {
			return nil, validationf(fmt.Sprintf("rank %d out of range 1..%d", in.Rank, len(answers)))
		}
		if ranks[in.Rank] {
			return nil, validationf(fmt.Sprintf("duplicate rank %d", in.Rank))
		}
		norm := Normalize(player)
		if names[norm] {
			return nil, validationf(fmt.Sprintf("duplicate answer %q", player))
		}
		ranks[in.Rank] = true
		names[norm] = true
		rows = append(rows, Answer{
			ID:               uuid.NewString(),
			QuestionID:       q.ID,
			Player:           player,
			NormalizedPlayer: norm,
			Rank:             in.Rank,
		})
	}

	err := s.st.InTx(ctx, func(st Store) error {
		return st.CreateQuestion(ctx, q, rows)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("question", q.ID).Int("answers", len(rows)).Msg("question created")
	return &q, nil
}

// DeleteQuestion removes a question along with its answers and any guesses
// recorded against it. Sessions still pointing at it fall back to a fresh
// random question on their next CurrentQuestion call.
func (s *Service) DeleteQuestion(ctx context.Context, id string) error {
	if id == "" {
		return validationf("question id is required")
	}
	return s.st.InTx(ctx, func(st Store) error {
		return st.DeleteQuestion(ctx, id)
	})
}

// ------------------------------ helpers ------------------------------------

// resolveSession runs get-or-create (with its reassignment side effects)
// inside its own transaction.
func (s *Service) resolveSession(ctx context.Context, token, questionID string) error {
	return s.st.InTx(ctx, func(st Store) error {
		_, err := st.GetOrCreateSession(ctx, token, questionID, s.opts.InitialLives)
		return err
	})
}

// randomIndex returns a cryptographically random index in [0, n).
func randomIndex(n int) int {
	nBig, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(nBig.Int64())
}
