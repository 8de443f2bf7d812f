package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/wheats/oauth2-server/authcode"
	"github.com/wheats/oauth2-server/clients"
	"github.com/wheats/oauth2-server/credentials"
	"github.com/wheats/oauth2-server/grant"
	"github.com/wheats/oauth2-server/internal/config"
	"github.com/wheats/oauth2-server/protector"
	"github.com/wheats/oauth2-server/token"
	"github.com/wheats/oauth2-server/users"
)

// Repos bundles the storage backends the server runs on.
type Repos struct {
	Users   users.UserRepo
	Clients clients.Repo
	Codes   authcode.Repo
	Tokens  token.Repo
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	repos     Repos
	executor  *grant.Executor
	protector *protector.Protector
	tokens    *token.Manager
	codes     *authcode.Manager
	generator *credentials.Generator
	sessions  *sessionManager
	limiter   *rateLimiter
}

func New(cfg config.Config, repos Repos) (*Server, error) {
	generator := credentials.New(credentials.WithEntropyBytes(cfg.GetTokenEntropyBytes()))
	codes := authcode.NewManager(repos.Codes, generator, authcode.WithTTL(cfg.GetAuthCodeTimeout()))
	tokens := token.NewManager(repos.Tokens, generator, token.WithTTL(cfg.GetAccessTokenExpiry()))

	policy := grant.PolicyPrompt
	if cfg.GetConsentPolicy() == "auto" {
		policy = grant.PolicyAuto
	}
	executor, err := grant.NewExecutor(
		grant.Repos{Users: repos.Users, Clients: repos.Clients},
		codes, tokens,
		grant.WithConsentPolicy(policy),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] create grant executor")
	}

	prot, err := protector.New(tokens, repos.Users)
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] create protector")
	}

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		config:    cfg,
		repos:     repos,
		executor:  executor,
		protector: prot,
		tokens:    tokens,
		codes:     codes,
		generator: generator,
		sessions:  newSessionManager(cfg.GetSessionSecret(), cfg.GetMaxSessionAge()),
	}
	if cfg.GetEnableRateLimiting() {
		s.limiter = newRateLimiter(cfg.GetRateLimitPerSecond(), cfg.GetRateLimitBurst())
	}

	if err := s.seedData(context.Background()); err != nil {
		return nil, errors.Wrap(err, "[server.New] seed data")
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Info().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			log.Info().Str("path", parts[0]).Msg("route")
		}
	}
}

// StartSweeper purges expired codes and tokens on a fixed interval until ctx
// is cancelled. Backends that expire entries themselves report zero deletions
// and the sweep is a cheap no-op.
func (s *Server) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				codes, err := s.codes.DeleteExpired(ctx)
				if err != nil {
					log.Err(err).Msg("sweep expired codes")
				}
				tokens, err := s.tokens.DeleteExpired(ctx)
				if err != nil {
					log.Err(err).Msg("sweep expired tokens")
				}
				if codes > 0 || tokens > 0 {
					log.Info().Int("codes", codes).Int("tokens", tokens).Msg("purged expired entries")
				}
			}
		}
	}()
}
