// internal/httpserver/admin.go
//
// Admin authentication and question authoring.
// Responsibilities:
//   - POST /auth/admin/token: exchange env-configured admin credentials for
//     an HS256 JWT with an "admin" role claim.
//   - POST /admin/questions: create a question with its ranked answer set.
//   - DELETE /admin/questions/{id}: remove a question with cascade cleanup.
//   - requireAdmin middleware: verifies the bearer token and role.
//
// Credentials come from ADMIN_USERNAME plus either ADMIN_PASSWORD_HASH
// (bcrypt) or ADMIN_PASSWORD (plaintext, for local development).

package httpserver

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/anujbohra03/cricket-top10-api/internal/game"
)

type adminLoginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type adminTokenRes struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// mountAdminRoutes registers the auth endpoint and the gated authoring routes.
func (s *Server) mountAdminRoutes() {
	s.r.Post("/auth/admin/token", s.handleAdminToken)
	s.r.With(requireAdmin).Post("/admin/questions", s.handleCreateQuestion)
	s.r.With(requireAdmin).Delete("/admin/questions/{id}", s.handleDeleteQuestion)
}

// handleAdminToken validates admin credentials and issues a signed token.
func (s *Server) handleAdminToken(w http.ResponseWriter, r *http.Request) {
	var body adminLoginReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	if !checkAdminCredentials(body.Username, body.Password) {
		log.Warn().Str("username", body.Username).Msg("rejected admin login")
		writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	tok, exp, err := signAdminJWT(body.Username)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "sign failed")
		return
	}
	_ = json.NewEncoder(w).Encode(adminTokenRes{AccessToken: tok, ExpiresAt: exp})
}

// createQuestionReq is the payload for POST /admin/questions.
type createQuestionReq struct {
	Question string `json:"question"`
	Answers  []struct {
		Player string `json:"player"`
		Rank   int    `json:"rank"`
	} `json:"answers"`
}

// handleCreateQuestion validates and stores a new question.
func (s *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var body createQuestionReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	answers := make([]game.AnswerInput, 0, len(body.Answers))
	for _, a := range body.Answers {
		answers = append(answers, game.AnswerInput{Player: a.Player, Rank: a.Rank})
	}
	q, err := s.svc.CreateQuestion(r.Context(), body.Question, answers)
	if err != nil {
		s.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"questionId": q.ID})
}

// handleDeleteQuestion removes a question and everything hanging off it.
func (s *Server) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteQuestion(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// ------------------------------ auth ---------------------------------------

// checkAdminCredentials compares against env-configured admin credentials.
// Prefers a bcrypt hash; falls back to a constant-time plaintext compare.
func checkAdminCredentials(username, password string) bool {
	wantUser := getEnv("ADMIN_USERNAME", "admin")
	if subtle.ConstantTimeCompare([]byte(username), []byte(wantUser)) != 1 {
		return false
	}
	if hash := os.Getenv("ADMIN_PASSWORD_HASH"); hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	want := os.Getenv("ADMIN_PASSWORD")
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(want)) == 1
}

// signAdminJWT creates an HS256 token carrying the admin role.
// Expiry is JWT_EXPIRES_MINUTES (default 60).
func signAdminJWT(username string) (string, time.Time, error) {
	minutes := 60
	if v := os.Getenv("JWT_EXPIRES_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			minutes = n
		}
	}
	exp := time.Now().Add(time.Duration(minutes) * time.Minute)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  username,
		"role": "admin",
		"exp":  exp.Unix(),
		"iat":  time.Now().Unix(),
	})
	ss, err := t.SignedString(jwtSecret())
	return ss, exp, err
}

func jwtSecret() []byte {
	return []byte(getEnv("JWT_SECRET", "dev_secret_change_me"))
}

// requireAdmin enforces a valid bearer token with the admin role.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return jwtSecret(), nil
		})
		if err != nil || !token.Valid {
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if role, _ := claims["role"].(string); role != "admin" {
			writeJSONError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts a token from the Authorization header.
func bearerToken(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return ""
}
