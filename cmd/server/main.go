package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/wheats/oauth2-server/authcode/repofake"
	clientfakerepo "github.com/wheats/oauth2-server/clients/fakerepo"
	"github.com/wheats/oauth2-server/internal/config"
	"github.com/wheats/oauth2-server/server"
	"github.com/wheats/oauth2-server/storage/postgres"
	redisstore "github.com/wheats/oauth2-server/storage/redis"
	tokenrepofake "github.com/wheats/oauth2-server/token/repofake"
	userrepofake "github.com/wheats/oauth2-server/users/repofake"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("server error")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()

	c := config.New()
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, closeStorage, err := buildRepos(ctx, c)
	if err != nil {
		return fmt.Errorf("building storage: %w", err)
	}
	defer closeStorage()

	srv, err := server.New(c, repos)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.StartSweeper(ctx, c.GetSweepInterval())

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

// buildRepos picks the storage backend from configuration: the in-memory
// fakes for development, PostgreSQL for durable deployments, or Redis for
// the code and token stores with the rest kept in memory.
func buildRepos(ctx context.Context, c config.Config) (server.Repos, func(), error) {
	memory := server.Repos{
		Users:   userrepofake.NewFakeUserRepo(),
		Clients: clientfakerepo.NewFakeClientRepo(),
		Codes:   repofake.NewFakeAuthCodeRepo(),
		Tokens:  tokenrepofake.NewFakeTokenRepo(),
	}

	switch backend := c.GetStorageBackend(); backend {
	case "memory":
		return memory, func() {}, nil

	case "postgres":
		store, err := postgres.Open(ctx, c.GetDatabaseURL())
		if err != nil {
			return server.Repos{}, nil, err
		}
		repos := server.Repos{
			Users:   store.Users(),
			Clients: store.Clients(),
			Codes:   store.Codes(),
			Tokens:  store.Tokens(),
		}
		return repos, func() { _ = store.Close() }, nil

	case "redis":
		store, err := redisstore.Open(ctx, redisstore.Config{URL: c.GetRedisURL()})
		if err != nil {
			return server.Repos{}, nil, err
		}
		repos := memory
		repos.Codes = store.Codes()
		repos.Tokens = store.Tokens()
		return repos, func() { _ = store.Close() }, nil

	default:
		return server.Repos{}, nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
