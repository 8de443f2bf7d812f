package server

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/wheats/oauth2-server/clients"
	"github.com/wheats/oauth2-server/oauth2"
	"github.com/wheats/oauth2-server/users"
)

// Development seed data. Created on startup when missing so a fresh server
// is immediately usable; existing records are never overwritten.
const (
	seedCustomerUsername = "customer1"
	seedStoreUsername    = "storeowner1"
	seedClientID         = "android_app_client"
)

func (s *Server) seedData(ctx context.Context) error {
	if s.env != "DEV" {
		return nil
	}

	seedUsers := []struct {
		username string
		email    string
		password string
		role     users.RoleType
	}{
		{seedCustomerUsername, "customer1@wheats.local", "password123", users.RoleCustomer},
		{seedStoreUsername, "storeowner1@wheats.local", "password123", users.RoleStore},
	}
	for _, seed := range seedUsers {
		if _, err := s.repos.Users.GetByUsername(ctx, seed.username); err == nil {
			continue
		} else if !errors.Is(err, users.ErrNotFound) {
			return errors.Wrap(err, "[Server.seedData] lookup user")
		}

		hash, err := users.HashPassword(seed.password)
		if err != nil {
			return errors.Wrap(err, "[Server.seedData] hash password")
		}
		user := &users.User{
			ID:           "seed-" + seed.username,
			Username:     seed.username,
			Email:        seed.email,
			PasswordHash: hash,
			Role:         seed.role,
			DateJoined:   time.Now().UTC(),
		}
		if err := s.repos.Users.Upsert(ctx, user); err != nil {
			return errors.Wrap(err, "[Server.seedData] store user")
		}
		log.Info().Str("username", seed.username).Str("role", string(seed.role)).Msg("seeded user")
	}

	if _, err := s.repos.Clients.Get(ctx, seedClientID); err == nil {
		return nil
	} else if !errors.Is(err, clients.ErrNotFound) {
		return errors.Wrap(err, "[Server.seedData] lookup client")
	}

	secretHash, err := clients.HashSecret("android_app_secret")
	if err != nil {
		return errors.Wrap(err, "[Server.seedData] hash client secret")
	}
	client := &clients.Client{
		ID:         seedClientID,
		Name:       "Wheats Android App",
		Type:       clients.ClientTypeConfidential,
		SecretHash: secretHash,
		RedirectURIs: []string{
			"http://localhost:3000/callback",
			"com.wheats.app://callback",
		},
		GrantTypes: []oauth2.GrantType{
			oauth2.AuthorizationCodeGrant,
			oauth2.PasswordGrant,
			oauth2.RefreshTokenGrant,
		},
		ResponseTypes: []oauth2.ResponseType{oauth2.CodeResponseType},
		Scope:         "profile customer store",
		AuthMethods: []oauth2.TokenEndpointAuthMethod{
			oauth2.AuthMethodClientSecretBasic,
			oauth2.AuthMethodClientSecretPost,
		},
	}
	if err := s.repos.Clients.Upsert(ctx, client); err != nil {
		return errors.Wrap(err, "[Server.seedData] store client")
	}
	log.Info().Str("client_id", seedClientID).Msg("seeded client")
	return nil
}
