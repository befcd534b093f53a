// internal/httpserver/server.go
//
// HTTP wiring for the cricket top-10 game API.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Game endpoints: GET /question, POST /question/next, GET /questions,
//     GET /state, POST /guess, POST /reset, GET /answers.
//   - Session token transport: X-Session-Id header, generated when absent
//     and always echoed back; the core treats it as an opaque string.
//   - Admin auth + question authoring mounted from admin.go.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled.
//   - Game outcomes (correct/wrong/duplicate/won/lost) are 200 responses
//     with a status field; only caller mistakes become 4xx.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/anujbohra03/cricket-top10-api/internal/game"
)

// sessionHeader carries the opaque session token both ways.
const sessionHeader = "X-Session-Id"

// Server bundles the router and the game engine.
type Server struct {
	r   *chi.Mux
	svc *game.Service
}

// New constructs a Server, installs middleware, and registers routes.
func New(svc *game.Service) *Server {
	s := &Server{r: chi.NewRouter(), svc: svc}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(10 * time.Second))
	s.r.Use(jsonContentType)
	s.r.Use(corsFromEnv)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"cricket-top10-api","endpoints":["/health","GET /question","GET /state","POST /guess","POST /reset","GET /answers"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// Game endpoints
	s.r.Get("/question", s.handleQuestion)
	s.r.Post("/question/next", s.handleNextQuestion)
	s.r.Get("/questions", s.handleQuestions)
	s.r.Get("/state", s.handleState)
	s.r.Post("/guess", s.handleGuess)
	s.r.Post("/reset", s.handleReset)
	s.r.Get("/answers", s.handleAnswers)

	// Admin auth + authoring
	s.mountAdminRoutes()

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:5173.
func corsFromEnv(next http.Handler) http.Handler {
	origin := os.Getenv("CLIENT_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+sessionHeader)
		w.Header().Set("Access-Control-Expose-Headers", sessionHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ sessions -----------------------------------

// sessionToken returns the caller's session token, generating a fresh one
// when the header is absent, and echoes the effective token back so clients
// can persist it.
func (s *Server) sessionToken(w http.ResponseWriter, r *http.Request) string {
	token := r.Header.Get(sessionHeader)
	if token == "" {
		token = uuid.NewString()
	}
	w.Header().Set(sessionHeader, token)
	return token
}

// ------------------------------- GAME --------------------------------------

// handleQuestion resolves (or assigns) the session's current question.
// An optional ?questionId= query selects a specific question.
func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	token := s.sessionToken(w, r)
	q, err := s.svc.CurrentQuestion(r.Context(), token, r.URL.Query().Get("questionId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(q)
}

// handleNextQuestion reassigns the session to a fresh random question,
// excluding the one it is currently playing when possible.
func (s *Server) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	token := s.sessionToken(w, r)
	q, err := s.svc.NextQuestion(r.Context(), token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(q)
}

// handleQuestions lists the catalog in display order.
func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := s.svc.Questions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(qs)
}

// handleState projects the player-visible session state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	token := s.sessionToken(w, r)
	state, err := s.svc.State(r.Context(), token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(state)
}

// guessReq is the payload for POST /guess.
type guessReq struct {
	QuestionID string `json:"questionId"`
	Guess      string `json:"guess"`
}

// handleGuess evaluates one guess and returns {result, state, gameStatus}.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	token := s.sessionToken(w, r)
	res, err := s.svc.Guess(r.Context(), token, req.QuestionID, req.Guess)
	if err != nil {
		s.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(res)
}

// handleReset restores lives and clears the session's guesses.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	token := s.sessionToken(w, r)
	if err := s.svc.Reset(r.Context(), token); err != nil {
		s.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// handleAnswers reveals the full ranked answer set for a question.
func (s *Server) handleAnswers(w http.ResponseWriter, r *http.Request) {
	answers, err := s.svc.Answers(r.Context(), r.URL.Query().Get("questionId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(answers)
}

// ------------------------------- errors ------------------------------------

// writeError maps engine errors onto the HTTP taxonomy: validation -> 400,
// empty catalog -> 404, anything else -> 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case game.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrQuestionNotFound):
		writeJSONError(w, http.StatusBadRequest, "invalid question id")
	case errors.Is(err, game.ErrNoQuestions):
		writeJSONError(w, http.StatusNotFound, "no questions available")
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
