package main

import (
	"context"
	"errors"
	"flag"
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

	"github.com/golden-vcr/creds"
	"github.com/golden-vcr/creds/internal/bus"
	"github.com/golden-vcr/creds/internal/callback"
	"github.com/golden-vcr/creds/internal/connect"
	"github.com/golden-vcr/creds/internal/exchange"
	"github.com/golden-vcr/creds/internal/identity"
	"github.com/golden-vcr/creds/internal/pending"
	"github.com/golden-vcr/creds/internal/store"
)

// login runs a single authorization-code flow from the command line: it
// starts a loopback callback listener, prints the authorize URL for the user
// to open in a browser, waits for the resulting credential, and writes it to
// the credentials file.

type Config struct {
	ListenPort   uint16 `env:"LISTEN_PORT" default:"7090"`
	CallbackPath string `env:"CALLBACK_PATH" default:"/oauth/callback"`

	TwitchClientId         string `env:"TWITCH_CLIENT_ID" required:"true"`
	TwitchClientSecret     string `env:"TWITCH_CLIENT_SECRET" required:"true"`
	StreamlabsClientId     string `env:"STREAMLABS_CLIENT_ID"`
	StreamlabsClientSecret string `env:"STREAMLABS_CLIENT_SECRET"`

	CredentialsFilePath string `env:"CREDENTIALS_FILE_PATH" default:"credentials.json"`
}

func main() {
	providerFlag := flag.String("provider", "twitch", "provider to authorize against (twitch or streamlabs)")
	keyFlag := flag.String("key", creds.KeyIRC, "subkey to store the issued credential under")
	timeoutFlag := flag.Duration("timeout", 5*time.Minute, "how long to wait for the user to complete consent")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		fail(logger, "Failed to load .env file", err)
	}
	config := Config{}
	if err := env.Set(&config); err != nil {
		fail(logger, "Failed to load config", err)
	}
	redirectUri := fmt.Sprintf("http://127.0.0.1:%d%s", config.ListenPort, config.CallbackPath)

	credentialStore, err := store.New(store.Options{
		FilePath:  config.CredentialsFilePath,
		SaveOnPut: true,
		Logger:    logger,
	})
	if err != nil {
		fail(logger, "Failed to initialize credential store", err)
	}

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

	// The manager reports each stored credential through the notify hook;
	// the first one means our flow is complete
	done := make(chan creds.CredentialChange, 1)
	authorizations := bus.NewTopic[creds.AuthorizationEvent]()
	expirations := bus.NewTopic[creds.TokenExpiredEvent]()
	manager := connect.NewManager(
		credentialStore,
		pending.NewTracker(),
		exchangers,
		identity.NewResolver(config.TwitchClientId),
		connect.Options{
			NotifyChange: func(change creds.CredentialChange) {
				select {
				case done <- change:
				default:
				}
			},
			Logger: logger,
		},
	)
	manager.Register(authorizations, expirations)

	r := mux.NewRouter()
	callback.NewServer(config.CallbackPath, logger, authorizations.Publish).RegisterRoutes(r)
	server := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", config.ListenPort), Handler: r}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fail(logger, "Callback listener failed", err)
		}
	}()
	defer server.Close()

	authorizeUrl, err := manager.BeginAuthorization(creds.Provider(*providerFlag), *keyFlag)
	if err != nil {
		fail(logger, "Failed to initiate authorization", err)
	}
	fmt.Printf("Open this URL in your browser to grant access:\n\n  %s\n\n", authorizeUrl)

	select {
	case change := <-done:
		if change.Kind != creds.ChangeIssued {
			fail(logger, "Authorization did not produce a credential", fmt.Errorf("unexpected change kind '%s'", change.Kind))
		}
		credential, _ := credentialStore.Get(change.Key)
		logger.Info("Credential issued",
			"key", change.Key,
			"displayName", credential.DisplayName,
			"path", config.CredentialsFilePath,
		)
	case <-time.After(*timeoutFlag):
		fail(logger, "Timed out waiting for authorization", nil)
	case <-ctx.Done():
		logger.Info("Interrupted")
	}
}

func fail(logger *slog.Logger, msg string, err error) {
	if err != nil {
		logger.Error(msg, "error", err)
	} else {
		logger.Error(msg)
	}
	os.Exit(1)
}
