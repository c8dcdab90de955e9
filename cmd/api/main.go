package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"idgate.org/internal/breaker"
	"idgate.org/internal/directory"
	"idgate.org/internal/httpapi"
	"idgate.org/internal/iam"
	"idgate.org/internal/obs"
	"idgate.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("IDGATE_COMMIT"))

	// Breaker settings for the admin call class.
	settings := breaker.Settings{
		FailureThreshold: envInt("IDGATE_BREAKER_THRESHOLD", 0),
		Cooldown:         envDuration("IDGATE_BREAKER_COOLDOWN", 0),
	}
	circuits := breaker.New(breaker.Settings{},
		breaker.WithKeySettings(directory.OpKey, settings),
		breaker.WithStateHook(func(key string, s breaker.Status) {
			obs.SetBreakerState(key, int(s))
			obs.Info("breaker state changed", obs.Fields{"key": key, "state": s.String()})
		}),
	)

	// The directory provider. Without a configured remote endpoint the
	// service runs against the in-memory fake, which is only suitable
	// for development.
	var provider directory.Provider = directory.NewFake()
	if endpoint := os.Getenv("IDGATE_DIRECTORY_ENDPOINT"); endpoint == "" {
		obs.Warn("no directory endpoint configured, using in-memory fake", nil)
	}
	pool := os.Getenv("IDGATE_DIRECTORY_POOL")
	if pool == "" {
		pool = "local-pool"
	}
	adapter, err := directory.NewAdapter(provider, circuits, directory.Config{
		Region:   os.Getenv("IDGATE_DIRECTORY_REGION"),
		Endpoint: os.Getenv("IDGATE_DIRECTORY_ENDPOINT"),
		Pool:     pool,
	})
	if err != nil {
		log.Fatalf("directory adapter: %v", err)
	}

	// Permission, assignment and policy stores: Postgres when a DSN is
	// configured, in-memory otherwise.
	var (
		perms    iam.PermissionStore
		assigns  iam.AssignmentStore
		policies iam.PolicyStore
		ready    httpapi.ReadyProbe
		closeDB  func()
	)
	if dsn := os.Getenv("IDGATE_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		perms, assigns, policies = store, store, store.Policies()
		ready = httpapi.ReadyProbe{DB: store.DB()}
		closeDB = func() { _ = store.Close() }
	} else {
		obs.Warn("no DSN configured, using in-memory stores", nil)
		mem := iam.NewMemoryStore()
		perms, assigns, policies = mem, mem, iam.NewMemoryPolicyStore()
		closeDB = func() {}
	}

	api := httpapi.New(httpapi.Config{
		Version:  version,
		Ready:    ready,
		Users:    iam.NewUserAdminService(adapter, nil),
		Perms:    iam.NewPermissionAdminService(perms, assigns, nil),
		Policies: iam.NewPolicyAdminService(policies, nil),
	})

	handler := httpapi.MaxBodyBytes(api.Handler(), 1<<20)
	handler = httpapi.RateLimit(handler, envInt("IDGATE_RATE_BURST", 50), envInt("IDGATE_RATE_PER_SEC", 25))

	addr := os.Getenv("IDGATE_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	obs.Info("starting idgate-api", obs.Fields{"version": version, "addr": srv.Addr})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.Info("shutting down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	closeDB()
	obs.Info("stopped", nil)
}

func envInt(name string, fallback int) int {
	if raw := os.Getenv(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
		log.Fatalf("%s must be an integer, got %q", name, os.Getenv(name))
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(name); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("%s must be a duration, got %q", name, raw)
		}
		return d
	}
	return fallback
}
