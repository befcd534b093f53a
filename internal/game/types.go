// internal/game/types.go
//
// Core type definitions for the top-10 guessing game.
// Defines:
//   - Question/Answer: the catalog entities (ranked answer sets).
//   - Session: one player's line of play against a single question.
//   - GameState/GuessResult/GuessResponse: player-visible projections.

package game

import (
	"strings"
	"time"
)

// Game status values derived from a session's projected state.
const (
	StatusActive = "active"
	StatusWon    = "won"
	StatusLost   = "lost"
)

// Question is a catalog entry with an ordered set of correct answers.
type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Answer is one ranked entry in a question's answer set.
// NormalizedPlayer is the comparison key for guesses (see Normalize).
type Answer struct {
	ID               string `json:"-"`
	QuestionID       string `json:"-"`
	Player           string `json:"player"`
	NormalizedPlayer string `json:"-"`
	Rank             int    `json:"rank"`
}

// Session is one row per session token. Lives decrease only on wrong
// guesses; reassigning the question resets lives and clears the ledger.
type Session struct {
	Token      string
	QuestionID string
	Lives      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FoundAnswer is a correct guess projected back to its canonical name and rank.
type FoundAnswer struct {
	Player string `json:"player"`
	Rank   int    `json:"rank"`
}

// GameState is the player-visible state of a session.
type GameState struct {
	Lives          int           `json:"lives"`
	Found          int           `json:"found"`
	CorrectGuesses []FoundAnswer `json:"correctGuesses"`
}

// GuessResult describes the outcome of a single guess.
type GuessResult struct {
	Correct bool   `json:"correct"`
	Player  string `json:"player,omitempty"`
	Rank    int    `json:"rank,omitempty"`
	Message string `json:"message,omitempty"`
}

// GuessResponse is the full payload returned after evaluating a guess.
type GuessResponse struct {
	Result     GuessResult `json:"result"`
	State      GameState   `json:"state"`
	GameStatus string      `json:"gameStatus"`
}

// Options are the tunables of the game engine.
type Options struct {
	InitialLives   int // lives granted to a fresh or reset session
	MaxGuessLength int // longest accepted guess, after trimming
}

// DefaultOptions mirrors the production configuration defaults.
func DefaultOptions() Options {
	return Options{InitialLives: 3, MaxGuessLength: 50}
}

// Normalize maps a guess or answer name to its comparison key:
// surrounding whitespace trimmed, lowercased. Two inputs that normalize
// to the same string are the same guess forever after.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
