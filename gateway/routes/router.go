package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"partnerledger/core"
	"partnerledger/gateway/middleware"
	"partnerledger/observability"
)

type Config struct {
	Node          *core.Node
	Events        *observability.EventLog
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
}

// Rate limit groups applied to the ledger routes.
const (
	LimitRead  = "read"
	LimitWrite = "write"
)

func New(cfg Config) (http.Handler, error) {
	if cfg.Node == nil {
		return nil, errors.New("routes: node required")
	}
	auth := cfg.Authenticator
	if auth == nil {
		auth = middleware.NewAuthenticator(middleware.AuthConfig{}, cfg.Logger)
	}
	ledger := &ledgerRoutes{node: cfg.Node, events: cfg.Events}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))

	obs := cfg.Observability
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	limit := func(sr chi.Router, key string) {
		if cfg.RateLimiter != nil {
			sr.Use(cfg.RateLimiter.Middleware(key))
		}
	}
	observe := func(sr chi.Router, route string) {
		if obs != nil {
			sr.Use(obs.Middleware(route))
		}
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(sr chi.Router) {
			observe(sr, "read")
			limit(sr, LimitRead)
			ledger.mountReads(sr)
		})
		v1.Group(func(sr chi.Router) {
			observe(sr, "vault")
			sr.Use(auth.Middleware())
			limit(sr, LimitWrite)
			sr.Post("/projects/{project}/deposits", ledger.deposit)
			sr.Post("/projects/{project}/removal-application", ledger.applyRemoval)
			sr.Post("/projects/{project}/removals", ledger.remove)
		})
		v1.Group(func(sr chi.Router) {
			observe(sr, "attribution")
			sr.Use(auth.Middleware(middleware.ScopeAttribute))
			limit(sr, LimitWrite)
			sr.Post("/attributions", ledger.attribute)
		})
		v1.Group(func(sr chi.Router) {
			observe(sr, "claims")
			sr.Use(auth.Middleware(middleware.ScopeClaims))
			limit(sr, LimitWrite)
			sr.Post("/claims", ledger.claim)
		})
		v1.Group(func(sr chi.Router) {
			observe(sr, "currencies")
			sr.Use(auth.Middleware(middleware.ScopeAdmin))
			limit(sr, LimitWrite)
			sr.Post("/currencies", ledger.addCurrency)
			sr.Delete("/currencies/{currency}", ledger.removeCurrency)
			sr.Put("/currencies/{currency}/limit", ledger.setLimit)
		})
		v1.Group(func(sr chi.Router) {
			observe(sr, "pauses")
			sr.Use(auth.Middleware(middleware.ScopePause))
			limit(sr, LimitWrite)
			sr.Put("/pauses/{module}", ledger.setPause)
		})
	})
	return r, nil
}
