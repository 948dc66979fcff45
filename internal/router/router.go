package router

import (
	"net/http"
	"strings"

	"github.com/zenithcode/backend/internal/auth"
	"github.com/zenithcode/backend/internal/dashboard"
	"github.com/zenithcode/backend/internal/handlers"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// New returns an http.Handler that serves the API under /api/v1.
// requireAuth protects everything except the auth endpoints; checkSpend
// additionally guards compute job creation.
func New(
	authHandler *auth.Handler,
	dashHandler *dashboard.Handler,
	tokenHandler *handlers.TokenHandler,
	patternHandler *handlers.PatternHandler,
	computeHandler *handlers.ComputeHandler,
	requireAuth Middleware,
	checkSpend Middleware,
) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.HandleFunc(base+"/auth/register", authHandler.Register)
	mux.HandleFunc(base+"/auth/login", authHandler.Login)

	protected := func(h http.HandlerFunc) http.Handler {
		return requireAuth(h)
	}

	mux.Handle(base+"/account/me", protected(methodGET(dashHandler.GetMe)))
	mux.Handle(base+"/account/settings", protected(methodPATCH(dashHandler.UpdateSettings)))
	mux.Handle(base+"/account", protected(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		dashHandler.Deactivate(w, r)
	}))

	mux.Handle(base+"/tokens/balance", protected(methodGET(tokenHandler.Balance)))
	mux.Handle(base+"/tokens/transactions", protected(methodGET(tokenHandler.ListTransactions)))
	mux.Handle(base+"/tokens/transfer", protected(methodPOST(tokenHandler.Transfer)))
	mux.Handle(base+"/tokens/claim", protected(methodPOST(tokenHandler.Claim)))

	mux.Handle(base+"/patterns", protected(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			patternHandler.Contribute(w, r)
		case http.MethodGet:
			patternHandler.List(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}))
	mux.Handle(base+"/patterns/", protected(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/rate"):
			patternHandler.Rate(w, r)
		case r.Method == http.MethodGet:
			patternHandler.Get(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}))
	mux.Handle(base+"/contributions", protected(methodGET(patternHandler.ListContributions)))

	mux.Handle(base+"/compute/jobs", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			checkSpend(http.HandlerFunc(computeHandler.CreateJob)).ServeHTTP(w, r)
		case http.MethodGet:
			computeHandler.ListJobs(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	mux.Handle(base+"/compute/jobs/", protected(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/cancel"):
			computeHandler.CancelJob(w, r)
		case r.Method == http.MethodGet:
			computeHandler.GetJob(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	return mux
}

func methodGET(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func methodPOST(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func methodPATCH(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}
