// Command mockapi serves an in-memory ScoutMe backend for local development.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scoutme/client/internal/auth"
	"github.com/scoutme/client/internal/logging"
	"github.com/scoutme/client/internal/mockapi"
)

const demoPassword = "password123"

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	addr       string
	secret     string
	tokenField string
	ttl        time.Duration
	seed       bool
	logFormat  string
	debug      bool
}

// NewRootCmd creates the mockapi command.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "mockapi",
		Short:        "Serve a development ScoutMe backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, cmd)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.addr, "addr", "localhost:8000", "listen address")
	fs.StringVar(&opts.secret, "secret", "", "JWT signing secret (random when empty)")
	fs.StringVar(&opts.tokenField, "token-field", "token", `token field of auth responses ("token" or "access_token")`)
	fs.DurationVar(&opts.ttl, "ttl", time.Hour, "token lifetime")
	fs.BoolVar(&opts.seed, "seed", true, "create demo accounts")
	fs.StringVar(&opts.logFormat, "log.format", "text", "log format (json or text)")
	fs.BoolVar(&opts.debug, "debug", false, "log every request")
	return cmd
}

func run(ctx context.Context, opts *options, cmd *cobra.Command) error {
	logger := logging.Setup("scoutme-mockapi", "dev", opts.logFormat, opts.debug, cmd.ErrOrStderr())

	mockOpts := []mockapi.Option{
		mockapi.WithTokenField(opts.tokenField),
		mockapi.WithTTL(opts.ttl),
		mockapi.WithLogger(logger),
	}
	if opts.secret != "" {
		mockOpts = append(mockOpts, mockapi.WithSecret([]byte(opts.secret)))
	}
	backend := mockapi.New(mockOpts...)

	if opts.seed {
		for _, u := range []auth.User{
			{Role: auth.RoleJoueur, FirstName: "Kylian", LastName: "Mbappé", Email: "joueur@scoutme.test"},
			{Role: auth.RoleRecruteur, FirstName: "Didier", LastName: "Deschamps", Email: "recruteur@scoutme.test"},
		} {
			if _, err := backend.AddUser(u, demoPassword); err != nil {
				return err
			}
			logger.Info("demo account", "email", u.Email, "password", demoPassword, "role", string(u.Role))
		}
	}

	srv := &http.Server{Addr: opts.addr, Handler: backend, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("mock api listening", "addr", opts.addr, "prefix", mockapi.Prefix)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
