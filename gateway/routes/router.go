package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pacochain/gateway/middleware"
)

// Route classes used as rate limiter keys.
const (
	RateLimitRead  = "paco.read"
	RateLimitWrite = "paco.write"
)

// Scope required on bearer tokens for state-changing requests.
const ScopeWrite = "paco:write"

type Config struct {
	Ledger        Ledger
	History       History
	Hub           *Hub
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
}

// New mounts the ledger API under /v1/paco together with health, metrics and
// the websocket event stream.
func New(cfg Config) (http.Handler, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("routes: ledger required")
	}
	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))

	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	api := &harbergerRoutes{ledger: cfg.Ledger, history: cfg.History}
	auth := cfg.Authenticator
	if auth == nil {
		auth = middleware.NewAuthenticator(middleware.AuthConfig{}, nil)
	}
	r.Route("/v1/paco", func(sr chi.Router) {
		if obs != nil {
			sr.Use(obs.Middleware("harberger"))
		}
		sr.Group(func(read chi.Router) {
			if cfg.RateLimiter != nil {
				read.Use(cfg.RateLimiter.Middleware(RateLimitRead))
			}
			read.Use(auth.Middleware())
			read.Get("/assets/{id}", api.instrument("get_listing", api.getListing))
			read.Get("/assets/{id}/intents", api.instrument("list_intents", api.listIntents))
			read.Get("/assets/{id}/intents/{account}", api.instrument("get_intent", api.getIntent))
			read.Get("/assets/{id}/history", api.instrument("history", api.assetHistory))
			read.Get("/refunds/{account}", api.instrument("view_refund", api.viewRefund))
			read.Get("/accounts/{account}/assets", api.instrument("tokens_of_owner", api.tokensOfOwner))
			read.Get("/token/balance/{account}", api.instrument("token_balance", api.tokenBalance))
			read.Get("/token/fees", api.instrument("fee_totals", api.feeTotals))
			read.Get("/vault", api.instrument("vault_audit", api.vaultAudit))
			if cfg.Hub != nil {
				read.Get("/events/ws", cfg.Hub.handleStream)
			}
		})
		sr.Group(func(write chi.Router) {
			if cfg.RateLimiter != nil {
				write.Use(cfg.RateLimiter.Middleware(RateLimitWrite))
			}
			write.Use(auth.Middleware(ScopeWrite))
			write.Post("/assets", api.instrument("mint", api.mint))
			write.Post("/assets/{id}/alter", api.instrument("alter", api.alter))
			write.Post("/assets/{id}/buy", api.instrument("buy", api.buy))
			write.Post("/assets/{id}/intents", api.instrument("set_intent", api.setIntent))
			write.Delete("/assets/{id}/intents", api.instrument("cancel_intent", api.cancelIntent))
			write.Post("/assets/{id}/transfer", api.instrument("transfer", api.transfer))
			write.Post("/fees/reap", api.instrument("reap", api.reap))
			write.Post("/refunds/withdraw", api.instrument("withdraw_refund", api.withdrawRefund))
			write.Post("/token/approve", api.instrument("token_approve", api.tokenApprove))
		})
	})

	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}
	return r, nil
}
