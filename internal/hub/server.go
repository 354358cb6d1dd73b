package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hearthkeep/hearth/internal/identity"
	"github.com/hearthkeep/hearth/pkg/types"
)

type contextKey string

const claimsKey contextKey = "claims"

// Server is the household hub: the serialization point every device
// pushes to and pulls from. State is in memory; the devices themselves
// are the durable copies.
type Server struct {
	issuer  *identity.TokenIssuer
	members *memberStore
	changes *changeStore
	logger  *log.Logger
}

// NewServer builds a hub that signs sessions with the given issuer.
func NewServer(issuer *identity.TokenIssuer, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stderr, "[hub] ", log.LstdFlags)
	}
	return &Server{
		issuer:  issuer,
		members: newMemberStore(),
		changes: newChangeStore(),
		logger:  logger,
	}
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Post("/api/auth/register", s.handleRegister)
	r.Post("/api/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/api/sync/push", s.handlePush)
		r.Get("/api/sync/pull", s.handlePull)
	})
	return r
}

type registerRequest struct {
	HouseholdID string `json:"householdId"`
	Name        string `json:"name"`
	Passcode    string `json:"passcode"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpFail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.HouseholdID == "" || req.Name == "" {
		httpFail(w, http.StatusBadRequest, "householdId and name are required")
		return
	}

	hash, err := identity.HashPasscode(req.Passcode)
	if err != nil {
		httpFail(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := s.members.create(req.HouseholdID, req.Name, hash)
	if errors.Is(err, ErrMemberExists) {
		httpFail(w, http.StatusConflict, "member already registered")
		return
	}
	if err != nil {
		httpFail(w, http.StatusInternalServerError, "registration failed")
		return
	}

	s.logger.Printf("registered %s in household %s", req.Name, req.HouseholdID)
	respondJSON(w, http.StatusCreated, map[string]string{"userId": m.ID})
}

type loginRequest struct {
	HouseholdID string `json:"householdId"`
	Name        string `json:"name"`
	Passcode    string `json:"passcode"`
	DeviceID    string `json:"deviceId"`
}

type loginResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	UserID      string    `json:"userId"`
	HouseholdID string    `json:"householdId"`
	DeviceID    string    `json:"deviceId"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpFail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	m, ok := s.members.lookup(req.HouseholdID, req.Name)
	if !ok || !identity.CheckPasscode(m.PasscodeHash, req.Passcode) {
		httpFail(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
		return
	}

	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = uuid.New().String()
	}

	token, expiresAt, err := s.issuer.Issue(m.ID, m.HouseholdID, deviceID)
	if err != nil {
		httpFail(w, http.StatusInternalServerError, "login failed")
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{
		Token:       token,
		ExpiresAt:   expiresAt,
		UserID:      m.ID,
		HouseholdID: m.HouseholdID,
		DeviceID:    deviceID,
	})
}

// requireAuth verifies the bearer token and stashes its claims in the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httpFail(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.issuer.Verify(token)
		if err != nil {
			httpFail(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func requestClaims(r *http.Request) *identity.Claims {
	claims, _ := r.Context().Value(claimsKey).(*identity.Claims)
	return claims
}

type pushRequest struct {
	Changes []types.ChangeRecord `json:"changes"`
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(r)

	var req pushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpFail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	accepted := s.changes.accept(claims.HouseholdID, req.Changes)
	s.logger.Printf("household %s: accepted %d of %d pushed changes",
		claims.HouseholdID, accepted, len(req.Changes))
	respondJSON(w, http.StatusOK, map[string]int{"pushed": len(req.Changes)})
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	claims := requestClaims(r)

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			httpFail(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		since = parsed
	}

	changes := s.changes.changesSince(claims.HouseholdID, since)
	if changes == nil {
		changes = []types.ChangeRecord{}
	}
	respondJSON(w, http.StatusOK, map[string][]types.ChangeRecord{"changes": changes})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func httpFail(w http.ResponseWriter, status int, message string) {
	http.Error(w, message, status)
}
