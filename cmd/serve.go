package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plutoskio/BDD-grandir2.0/internal/classify"
	"github.com/plutoskio/BDD-grandir2.0/internal/config"
	"github.com/plutoskio/BDD-grandir2.0/internal/match"
	"github.com/plutoskio/BDD-grandir2.0/internal/model"
	"github.com/plutoskio/BDD-grandir2.0/internal/requirement"
	"github.com/plutoskio/BDD-grandir2.0/internal/store"
)

var servePort int

// api bundles the collaborators the HTTP handlers need.
type api struct {
	store    store.Store
	rules    *classify.Ruleset
	ranker   *match.Ranker
	redirect config.RedirectConfig
	workers  int
}

func (a *api) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", a.handleHealth)
	r.Post("/rank", a.handleRank)
	r.Get("/redirects", a.handleRedirects)

	return r
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// rankRequest is the POST /rank body. Candidates and postings are
// optional: when absent the sets come from the store. Scoring overrides
// the configured weights for this one request.
type rankRequest struct {
	Candidates   []model.Candidate              `json:"candidates,omitempty"`
	Postings     []model.Posting                `json:"postings,omitempty"`
	Requirements map[string]requirement.Formula `json:"requirements,omitempty"`
	Scoring      *config.ScoringConfig          `json:"scoring,omitempty"`

	Top           int      `json:"top,omitempty"`
	MinScore      *float64 `json:"min_score,omitempty"`
	MaxDistanceKM *float64 `json:"max_distance_km,omitempty"`
	Save          bool     `json:"save,omitempty"`
}

func (a *api) handleRank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	ranker := a.ranker
	if req.Scoring != nil {
		var err error
		ranker, err = match.NewRanker(*req.Scoring, a.workers)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}

	mreq := match.Request{
		Candidates:    req.Candidates,
		Postings:      req.Postings,
		Requirements:  req.Requirements,
		Top:           req.Top,
		MinScore:      req.MinScore,
		MaxDistanceKM: req.MaxDistanceKM,
	}
	if len(mreq.Candidates) == 0 && len(mreq.Postings) == 0 {
		in, err := loadInputs(r.Context(), a.store, a.rules)
		if err != nil {
			zap.L().Error("rank inputs", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "load inputs"})
			return
		}
		mreq.Candidates = in.Candidates
		mreq.Postings = in.Postings
		mreq.Requirements = in.Requirements
	} else {
		// Inline candidates arrive with raw labels only.
		for i := range mreq.Candidates {
			mreq.Candidates[i].Categories = a.rules.ClassifyAll(mreq.Candidates[i].RawDiplomas)
		}
	}

	res, err := ranker.Rank(r.Context(), mreq)
	if err != nil {
		zap.L().Error("rank", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ranking failed"})
		return
	}

	if req.Save {
		if err := a.store.SaveMatches(r.Context(), res.ID, res.Matches); err != nil {
			zap.L().Error("save matches", zap.String("result_id", res.ID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "save failed"})
			return
		}
	}

	writeJSON(w, http.StatusOK, res)
}

func (a *api) handleRedirects(w http.ResponseWriter, r *http.Request) {
	in, err := loadInputs(r.Context(), a.store, a.rules)
	if err != nil {
		zap.L().Error("redirect inputs", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "load inputs"})
		return
	}

	res, err := a.ranker.Rank(r.Context(), match.Request{
		Candidates:   in.Candidates,
		Postings:     in.Postings,
		Requirements: in.Requirements,
	})
	if err != nil {
		zap.L().Error("redirect rank", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ranking failed"})
		return
	}

	byID := make(map[string]model.Candidate, len(in.Candidates))
	for _, c := range in.Candidates {
		byID[c.ID] = c
	}
	redirects := match.FindRedirects(res.Matches, byID, in.Postings, in.Requirements, a.redirect)

	writeJSON(w, http.StatusOK, redirects)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the matching HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rules, err := initRuleset()
		if err != nil {
			return err
		}
		ranker, err := initRanker()
		if err != nil {
			return err
		}

		a := &api{
			store:    st,
			rules:    rules,
			ranker:   ranker,
			redirect: cfg.Redirect,
			workers:  cfg.Match.Workers,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: a.router(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
