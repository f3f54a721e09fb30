package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"property-registry/backend/internal/config"
	"property-registry/backend/internal/domain/account"
	"property-registry/backend/internal/domain/property"
	"property-registry/backend/internal/domain/session"
	"property-registry/backend/internal/firebase"
	apihttp "property-registry/backend/internal/http"
	"property-registry/backend/internal/ready"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	sig := ready.New[*apihttp.Facades]()
	router := apihttp.NewRouter(apihttp.RouterDeps{
		Cfg:   cfg,
		Ready: sig,
	})

	srv := newServer(":"+cfg.Port, router)

	// graceful shutdown
	go func() {
		log.Printf("API listening on :%s (project=%s)", cfg.Port, cfg.Firebase.ProjectID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen failed: %v", err)
		}
	}()

	cleanup := ready.New[func()]()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		f, closeFn, err := bootstrap(ctx, cfg)
		if err != nil {
			sig.Fail(err)
			log.Fatalf("bootstrap failed: %v", err)
		}
		cleanup.Publish(closeFn)
		sig.Publish(f)
		log.Println("services ready")
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Println("shutting down...")
	_ = srv.Shutdown(ctxShutdown)
	if closeFn, err := cleanup.Peek(); err == nil {
		closeFn()
	}
}

// newServer returns a server whose request contexts are cancelled as soon as
// Shutdown starts, so open event streams end and shutdown is not held up.
func newServer(addr string, h http.Handler) *http.Server {
	baseCtx, cancelBase := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)
	return srv
}

// bootstrap builds the Firebase clients and the facades over them. The
// returned func releases everything it opened.
func bootstrap(ctx context.Context, cfg config.Config) (*apihttp.Facades, func(), error) {
	svcs, err := firebase.NewServices(ctx, cfg.Firebase)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){svcs.Close}

	var store property.Store
	switch cfg.PropertyStore {
	case config.StoreMemory:
		log.Println("[properties] using in-memory store")
		store = property.NewMemStore()
	default:
		store = property.NewRepo(svcs.Firestore, cfg.PropertiesCollection)
	}

	var sessions session.Store
	switch cfg.Session.Backend {
	case config.SessionRedis:
		rs, err := session.NewRedisStore(session.RedisConfig{
			Addr:      cfg.Session.RedisAddr,
			KeyPrefix: cfg.Session.KeyPrefix,
			TTL:       cfg.Session.TTL,
		})
		if err != nil {
			closers[0]()
			return nil, nil, err
		}
		log.Printf("[session] using redis at %s", cfg.Session.RedisAddr)
		sessions = rs
		closers = append(closers, func() { _ = rs.Close() })
	default:
		sessions = session.NewMemoryStore()
	}

	accounts := account.NewService(firebase.NewAuthProvider(svcs), sessions)
	closers = append([]func(){accounts.Close}, closers...)

	f := &apihttp.Facades{
		Accounts:   accounts,
		Properties: property.NewService(store),
		Sessions:   sessions,
		Verifier:   svcs.Auth,
	}
	return f, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}
