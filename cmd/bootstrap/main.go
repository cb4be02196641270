package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-fund-auth/bootstrap"
	"github.com/jrsteele09/go-fund-auth/internal/backend"
	"github.com/jrsteele09/go-fund-auth/internal/config"
	"github.com/jrsteele09/go-fund-auth/tenants"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	orgCode := flag.String("org-code", bootstrap.DefaultOrganizationCode, "default organization code")
	orgName := flag.String("org-name", bootstrap.DefaultOrganizationName, "default organization name")
	orgType := flag.String("org-type", string(tenants.TypeChurch), "default organization type")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal().Err(err).Str("file", *envFile).Msg("failed to load env file")
	}

	t, err := tenants.ParseOrganizationType(*orgType)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid organization type")
	}

	c := config.New()
	if c.GetDatabaseURL() == "" {
		log.Fatal().Msg("DATABASE_URL is required; in-memory stores would discard the seed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	b, err := backend.Open(ctx, c)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open stores")
	}
	defer b.Close()

	result, err := bootstrap.EnsureDefaults(ctx, bootstrap.Repos{Users: b.Users, Roles: b.Roles, Tenants: b.Tenants}, bootstrap.Options{
		AdminUsername:    c.GetBootstrapAdminUsername(),
		AdminPassword:    c.GetBootstrapAdminPassword(),
		OrganizationCode: *orgCode,
		OrganizationName: *orgName,
		OrganizationType: t,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap failed")
	}

	log.Info().
		Strs("created_roles", result.CreatedRoles).
		Str("organization", result.Organization.Code).
		Str("admin", result.Admin.Username).
		Msg("bootstrap complete")
	if result.GeneratedPassword != "" {
		fmt.Printf("admin password: %s\n", result.GeneratedPassword)
	}
}
