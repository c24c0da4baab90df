// Command server runs the entfalten completion gateway.
//
// Configuration is layered: built-in defaults, an optional YAML config
// file (-config flag, ENTFALTEN_CONFIG env, ./config.yaml,
// /etc/entfalten/config.yaml), then ENTFALTEN_* environment overrides.
// See pkg/config for the full schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entfalten/entfalten/pkg/auth"
	"github.com/entfalten/entfalten/pkg/auth/apikey"
	"github.com/entfalten/entfalten/pkg/auth/jwt"
	"github.com/entfalten/entfalten/pkg/auth/noop"
	"github.com/entfalten/entfalten/pkg/config"
	"github.com/entfalten/entfalten/pkg/conversation"
	"github.com/entfalten/entfalten/pkg/conversation/memory"
	"github.com/entfalten/entfalten/pkg/conversation/postgres"
	"github.com/entfalten/entfalten/pkg/debug"
	"github.com/entfalten/entfalten/pkg/engine"
	"github.com/entfalten/entfalten/pkg/observability"
	"github.com/entfalten/entfalten/pkg/provider/openai"
	"github.com/entfalten/entfalten/pkg/template"
	transporthttp "github.com/entfalten/entfalten/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	debug.Init("", "")

	templates := template.NewGateway(cfg.Templates.URL, cfg.Templates.Timeout)

	completer := openai.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout)
	defer completer.Close()

	store, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("creating conversation store: %w", err)
	}
	defer store.Close()

	eng, err := engine.New(templates, completer, store, engine.Config{
		DefaultModel:     cfg.Engine.DefaultModel,
		MaxTokensCeiling: cfg.Engine.MaxTokensCeiling,
		DefaultSystem:    cfg.Engine.DefaultSystem,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	chain, err := buildAuthChain(cfg)
	if err != nil {
		return fmt.Errorf("creating auth chain: %w", err)
	}

	wrap := func(h http.Handler) http.Handler {
		mux := http.NewServeMux()
		if cfg.Observability.Metrics.Enabled {
			mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
		}
		mux.Handle("/", h)

		var handler http.Handler = observability.MetricsMiddleware(mux)
		handler = auth.Middleware(chain, auth.DefaultBypassEndpoints)(handler)
		return handler
	}

	srv := transporthttp.NewServer(eng,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithWrap(wrap),
	)

	slog.Info("gateway configured",
		"port", cfg.Server.Port,
		"backend", cfg.Provider.BaseURL,
		"templates", cfg.Templates.URL,
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
	)

	return srv.ListenAndServe()
}

// buildStore creates the conversation store per config. The postgres
// store is wrapped in the read-through cache.
func buildStore(cfg *config.Config) (conversation.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		pg, err := postgres.New(context.Background(), postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MinConns:       cfg.Storage.Postgres.MinConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("storage enabled", "type", "postgres")
		return conversation.NewCache(pg), nil
	default:
		slog.Info("storage enabled", "type", "memory", "max_size", cfg.Storage.MaxSize)
		return memory.New(cfg.Storage.MaxSize), nil
	}
}

// buildAuthChain assembles the authenticator chain per config. With
// auth disabled the chain holds the no-op voter and every request runs
// as anonymous.
func buildAuthChain(cfg *config.Config) (*auth.AuthChain, error) {
	switch cfg.Auth.Type {
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{
				Key: k.Key,
				Identity: auth.Identity{
					Subject: k.Subject,
					Role:    k.Role,
				},
			})
		}
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{apikey.New(entries)},
			DefaultDecision: auth.No,
		}, nil

	case "jwt":
		authn := jwt.New(jwt.Config{
			Issuer:    cfg.Auth.JWT.Issuer,
			Audience:  cfg.Auth.JWT.Audience,
			JWKSURL:   cfg.Auth.JWT.JWKSURL,
			UserClaim: cfg.Auth.JWT.UserClaim,
			RoleClaim: cfg.Auth.JWT.RoleClaim,
			CacheTTL:  cfg.Auth.JWT.CacheTTL,
		})
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{authn},
			DefaultDecision: auth.No,
		}, nil

	default:
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{&noop.Authenticator{}},
			DefaultDecision: auth.Yes,
		}, nil
	}
}
