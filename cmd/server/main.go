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
	"github.com/jrsteele09/go-fund-auth/bootstrap"
	"github.com/jrsteele09/go-fund-auth/internal/backend"
	"github.com/jrsteele09/go-fund-auth/internal/config"
	"github.com/jrsteele09/go-fund-auth/internal/obs"
	"github.com/jrsteele09/go-fund-auth/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	configureLogging(c.GetEnv())
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := backend.Open(ctx, c)
	if err != nil {
		return err
	}
	defer b.Close()

	seeded, err := bootstrap.EnsureDefaults(ctx, bootstrap.Repos{Users: b.Users, Roles: b.Roles, Tenants: b.Tenants}, bootstrap.Options{
		AdminUsername: c.GetBootstrapAdminUsername(),
		AdminPassword: c.GetBootstrapAdminPassword(),
	})
	if err != nil {
		return err
	}
	if seeded.GeneratedPassword != "" {
		log.Warn().Str("username", seeded.Admin.Username).Str("password", seeded.GeneratedPassword).
			Msg("created admin principal with a generated password, change it after first login")
	}

	if err := obs.Register(nil); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	srv, err := server.New(c, server.Repos{
		Users:   b.Users,
		Roles:   b.Roles,
		Tenants: b.Tenants,
		Audit:   b.Audit,
	}, server.WithDenylist(b.Denylist))
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(httpServer)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return shutdown(httpServer)
}

func configureLogging(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "DEV" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
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
