package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"property-registry/backend/internal/config"
	"property-registry/backend/internal/domain/account"
	"property-registry/backend/internal/domain/property"
	"property-registry/backend/internal/domain/session"
	"property-registry/backend/internal/httpjson"
	"property-registry/backend/internal/middleware"
	"property-registry/backend/internal/ready"

	"github.com/go-chi/chi/v5"
)

// Facades is what the API needs once the backing platform is up.
type Facades struct {
	Accounts   *account.Service
	Properties *property.Service
	Sessions   session.Store
	// Verifier checks ID tokens on property routes when RequireAuth is set.
	Verifier middleware.TokenVerifier
}

type RouterDeps struct {
	Cfg   config.Config
	Ready *ready.Signal[*Facades]
	// KeepAlive is the SSE comment interval; zero means 15s.
	KeepAlive time.Duration
}

type facadesKey struct{}

func withFacades(ctx context.Context, f *Facades) context.Context {
	return context.WithValue(ctx, facadesKey{}, f)
}

func facadesFrom(ctx context.Context) *Facades {
	f, _ := ctx.Value(facadesKey{}).(*Facades)
	return f
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(d.Cfg.AllowedOrigins))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpjson.OK(w, 200, map[string]any{"ts": time.Now().UTC().Format(time.RFC3339)})
	})
	r.Get("/readyz", readyz(d.Ready))

	keepAlive := d.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	ah := &authHandlers{}
	ph := &propertyHandlers{keepAlive: keepAlive}

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.RequireReady(d.Ready, withFacades))

		// ===== Auth =====
		pr.Post("/v1/auth/accounts", ah.createAccount)
		pr.Post("/v1/auth/sign-in", ah.signIn)

		// session routes always act on the verified caller
		pr.Group(func(sr chi.Router) {
			sr.Use(requireToken)
			sr.Post("/v1/auth/sign-out", ah.signOut)
			sr.Post("/v1/auth/password", ah.changePassword)
			sr.Get("/v1/auth/me", ah.me)
			sr.Get("/v1/session", ah.session)
		})

		// ===== Properties =====
		pr.Group(func(pp chi.Router) {
			if d.Cfg.RequireAuth {
				pp.Use(requireToken)
			}
			pp.Post("/v1/properties", ph.add)
			pp.Get("/v1/properties", ph.list)
			pp.Get("/v1/properties/search", ph.search)
			pp.Get("/v1/properties/stream", ph.stream)
			pp.Patch("/v1/properties/{id}", ph.update)
			pp.Delete("/v1/properties/{id}", ph.remove)
		})
	})

	return r
}

// requireToken verifies the ID token and makes its user the account caller.
func requireToken(next http.Handler) http.Handler {
	asCaller := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		au, ok := middleware.GetAuthUser(r.Context())
		if !ok {
			httpjson.Error(w, 401, httpjson.KindUnauthenticated, "missing auth user")
			return
		}
		ctx := account.WithCaller(r.Context(), account.Caller{UID: au.UID, Email: au.Email})
		next.ServeHTTP(w, r.WithContext(ctx))
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := facadesFrom(r.Context())
		if f == nil || f.Verifier == nil {
			httpjson.Error(w, 500, httpjson.KindInternal, "token verifier is not configured")
			return
		}
		middleware.WithAuth(f.Verifier)(asCaller).ServeHTTP(w, r)
	})
}

const maxReadyWait = 30 * time.Second

// readyz reports readiness. With ?wait=<duration> it holds the request until
// the service is ready or the wait runs out.
func readyz(sig *ready.Signal[*Facades]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		if raw := r.URL.Query().Get("wait"); raw != "" {
			wait, perr := time.ParseDuration(raw)
			if perr != nil || wait < 0 {
				httpjson.Error(w, 400, httpjson.KindBadRequest, "invalid wait duration")
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), min(wait, maxReadyWait))
			defer cancel()
			_, err = sig.Wait(ctx)
		} else {
			_, err = sig.Peek()
		}

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				err = ready.ErrNotReady
			}
			httpjson.Error(w, 503, httpjson.KindUnavailable, err.Error())
			return
		}
		httpjson.OK(w, 200, nil)
	}
}
