package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codingconcepts/env"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/golden-vcr/creds"
	"github.com/golden-vcr/creds/internal/bus"
	"github.com/golden-vcr/creds/internal/callback"
	"github.com/golden-vcr/creds/internal/connect"
	"github.com/golden-vcr/creds/internal/exchange"
	"github.com/golden-vcr/creds/internal/identity"
	"github.com/golden-vcr/creds/internal/monitor"
	"github.com/golden-vcr/creds/internal/notify"
	"github.com/golden-vcr/creds/internal/pending"
	"github.com/golden-vcr/creds/internal/status"
	"github.com/golden-vcr/creds/internal/store"
)

type Config struct {
	BindAddr     string `env:"BIND_ADDR" default:"127.0.0.1"`
	ListenPort   uint16 `env:"LISTEN_PORT" default:"7090"`
	CallbackPath string `env:"CALLBACK_PATH" default:"/oauth/callback"`
	// RedirectOrigin is the externally-visible origin of the callback
	// listener; if unset it's derived from the listen address
	RedirectOrigin string `env:"REDIRECT_ORIGIN"`

	TwitchClientId         string `env:"TWITCH_CLIENT_ID" required:"true"`
	TwitchClientSecret     string `env:"TWITCH_CLIENT_SECRET" required:"true"`
	StreamlabsClientId     string `env:"STREAMLABS_CLIENT_ID"`
	StreamlabsClientSecret string `env:"STREAMLABS_CLIENT_SECRET"`

	CredentialsFilePath string `env:"CREDENTIALS_FILE_PATH"`
	SaveCredentials     bool   `env:"SAVE_CREDENTIALS" default:"false"`

	// InitialCsrfState accepts a single fixed state value for flows where the
	// authorize URL was constructed out-of-band (single-tenant setups); leave
	// unset to require per-request states
	InitialCsrfState string `env:"INITIAL_CSRF_STATE"`

	MonitorIntervalSeconds int `env:"MONITOR_INTERVAL_SECONDS" default:"10"`
	RefreshBackoffSeconds  int `env:"REFRESH_BACKOFF_SECONDS" default:"60"`

	RmqHost     string `env:"RMQ_HOST"`
	RmqPort     int    `env:"RMQ_PORT" default:"5672"`
	RmqVhost    string `env:"RMQ_VHOST"`
	RmqUser     string `env:"RMQ_USER"`
	RmqPassword string `env:"RMQ_PASSWORD"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Parse config from environment variables
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		fail(logger, "Failed to load .env file", err)
	}
	config := Config{}
	if err := env.Set(&config); err != nil {
		fail(logger, "Failed to load config", err)
	}
	redirectOrigin := config.RedirectOrigin
	if redirectOrigin == "" {
		redirectOrigin = fmt.Sprintf("http://%s:%d", config.BindAddr, config.ListenPort)
	}
	redirectUri := redirectOrigin + config.CallbackPath

	// Initialize the credential store, repopulating it from the credentials
	// file (if one is configured and exists) before anything touches the
	// network
	credentialStore, err := store.New(store.Options{
		FilePath:  config.CredentialsFilePath,
		SaveOnPut: config.SaveCredentials,
		Logger:    logger,
	})
	if err != nil {
		fail(logger, "Failed to initialize credential store", err)
	}

	// All components communicate through these two topics: the callback
	// listener publishes authorizations, the monitor publishes expirations,
	// and the connect manager subscribes to both
	authorizations := bus.NewTopic[creds.AuthorizationEvent]()
	expirations := bus.NewTopic[creds.TokenExpiredEvent]()

	// One exchange client per configured provider
	exchangers := map[creds.Provider]connect.Exchanger{
		creds.ProviderTwitch: exchange.NewClient(exchange.Config{
			Provider:     creds.ProviderTwitch,
			ClientID:     config.TwitchClientId,
			ClientSecret: config.TwitchClientSecret,
			RedirectURI:  redirectUri,
			Scopes:       creds.RequiredScopes[creds.ProviderTwitch],
		}),
	}
	if config.StreamlabsClientId != "" {
		exchangers[creds.ProviderStreamlabs] = exchange.NewClient(exchange.Config{
			Provider:     creds.ProviderStreamlabs,
			ClientID:     config.StreamlabsClientId,
			ClientSecret: config.StreamlabsClientSecret,
			RedirectURI:  redirectUri,
			Scopes:       creds.RequiredScopes[creds.ProviderStreamlabs],
		})
	}

	// If AMQP is configured, fan credential lifecycle changes out to sibling
	// services
	var notifyChange connect.NotifyChangeFunc
	if config.RmqHost != "" {
		amqpConn, err := amqp.Dial(notify.FormatConnectionString(config.RmqHost, config.RmqPort, config.RmqVhost, config.RmqUser, config.RmqPassword))
		if err != nil {
			fail(logger, "Failed to connect to AMQP server", err)
		}
		defer amqpConn.Close()
		producer, err := notify.NewProducer(amqpConn, "credential-events")
		if err != nil {
			fail(logger, "Failed to initialize AMQP producer", err)
		}
		notifyChange = func(change creds.CredentialChange) {
			if err := producer.Send(ctx, change); err != nil {
				logger.Error("Failed to publish credential change", "error", err, "key", change.Key)
			}
		}
	}

	// The connect manager subscribes to both topics and drives token exchange
	// and refresh
	manager := connect.NewManager(
		credentialStore,
		pending.NewTracker(),
		exchangers,
		identity.NewResolver(config.TwitchClientId),
		connect.Options{
			FixedState:       config.InitialCsrfState,
			FixedStateTarget: connect.Target{Provider: creds.ProviderTwitch, Subkey: creds.KeyIRC},
			NotifyChange:     notifyChange,
			Logger:           logger,
		},
	)
	manager.Register(authorizations, expirations)

	// Watch for expiring credentials in the background until shutdown
	expiryMonitor := monitor.New(credentialStore, expirations.Publish, monitor.Options{
		Interval: time.Duration(config.MonitorIntervalSeconds) * time.Second,
		Backoff:  time.Duration(config.RefreshBackoffSeconds) * time.Second,
		Logger:   logger,
	})
	go expiryMonitor.Run(ctx)

	// Start setting up our HTTP handlers, using gorilla/mux for routing: the
	// provider redirects the user's browser to GET <CallbackPath> at the end
	// of a consent flow, GET /authorize/start initiates a flow, and GET
	// /status summarizes the stored credentials
	r := mux.NewRouter()
	callback.NewServer(config.CallbackPath, logger, authorizations.Publish).RegisterRoutes(r)
	manager.RegisterRoutes(r)
	status.NewServer(credentialStore, logger).RegisterRoutes(r)

	// Handle incoming HTTP connections until our top-level context is
	// canceled, at which point shut down cleanly
	addr := fmt.Sprintf("%s:%d", config.BindAddr, config.ListenPort)
	server := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down HTTP server cleanly", "error", err)
		}
	}()
	logger.Info("Listening", "addr", addr, "redirectUri", redirectUri)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fail(logger, "HTTP server failed", err)
	}
}

func fail(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
