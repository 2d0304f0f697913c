package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/auth"
	"quiz-duel-service/internal/domain"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// API serves the read-only leaderboard and account endpoints.
type API struct {
	standings app.Standings
	verifier  *auth.Verifier
	log       *zap.Logger
}

func NewAPI(standings app.Standings, verifier *auth.Verifier, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{standings: standings, verifier: verifier, log: log}
}

// Register mounts the API routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/leaderboard", a.leaderboard)
	mux.HandleFunc("GET /api/me/stats", a.meStats)
	mux.HandleFunc("GET /api/me/matches", a.meMatches)
	mux.HandleFunc("GET /api/me/badges", a.meBadges)
}

type leaderboardResponse struct {
	OK      bool                      `json:"ok"`
	ModeKey string                    `json:"modeKey"`
	Entries []domain.LeaderboardEntry `json:"entries"`
}

type statsResponse struct {
	OK      bool                `json:"ok"`
	User    domain.Account      `json:"user"`
	ModeKey *string             `json:"modeKey"`
	Totals  domain.RatingTotals `json:"totals"`
	Ratings []domain.Rating     `json:"ratings"`
}

type matchesResponse struct {
	OK      bool                 `json:"ok"`
	Matches []domain.MatchRecord `json:"matches"`
}

type badgesResponse struct {
	OK     bool                 `json:"ok"`
	Badges []domain.EarnedBadge `json:"badges"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "mode is required"})
		return
	}
	entries, err := a.standings.Leaderboard(r.Context(), mode, parseLimit(r))
	if err != nil {
		a.fail(w, "leaderboard", err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{OK: true, ModeKey: mode, Entries: entries})
}

func (a *API) meStats(w http.ResponseWriter, r *http.Request) {
	account, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	ratings, err := a.standings.RatingsFor(r.Context(), account.ID)
	if err != nil {
		a.fail(w, "ratings", err)
		return
	}

	var modeKey *string
	if mode := r.URL.Query().Get("modeKey"); mode != "" {
		modeKey = &mode
		filtered := ratings[:0]
		for _, rt := range ratings {
			if rt.ModeKey == mode {
				filtered = append(filtered, rt)
			}
		}
		ratings = filtered
	}
	if ratings == nil {
		ratings = []domain.Rating{}
	}
	writeJSON(w, http.StatusOK, statsResponse{
		OK:      true,
		User:    *account,
		ModeKey: modeKey,
		Totals:  domain.Totals(ratings),
		Ratings: ratings,
	})
}

func (a *API) meMatches(w http.ResponseWriter, r *http.Request) {
	account, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	matches, err := a.standings.MatchesFor(r.Context(), account.ID, parseLimit(r))
	if err != nil {
		a.fail(w, "matches", err)
		return
	}
	if matches == nil {
		matches = []domain.MatchRecord{}
	}
	writeJSON(w, http.StatusOK, matchesResponse{OK: true, Matches: matches})
}

func (a *API) meBadges(w http.ResponseWriter, r *http.Request) {
	account, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	badges, err := a.standings.BadgesFor(r.Context(), account.ID)
	if err != nil {
		a.fail(w, "badges", err)
		return
	}
	if badges == nil {
		badges = []domain.EarnedBadge{}
	}
	writeJSON(w, http.StatusOK, badgesResponse{OK: true, Badges: badges})
}

func (a *API) authenticate(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	var account *domain.Account
	if a.verifier != nil {
		account = a.verifier.Verify(r.Header.Get("Authorization"))
	}
	if account == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return nil, false
	}
	return account, true
}

func (a *API) fail(w http.ResponseWriter, what string, err error) {
	a.log.Error("api query failed", zap.String("query", what), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func parseLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
