package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/prospect/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/prospect/backend/internal/config"
	"github.com/MarcoPoloResearchLab/prospect/backend/internal/crm"
	"github.com/MarcoPoloResearchLab/prospect/backend/internal/database"
	"github.com/MarcoPoloResearchLab/prospect/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/prospect/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/prospect/backend/internal/server"
	"github.com/MarcoPoloResearchLab/prospect/backend/internal/users"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 30 * time.Second
	shutdownTimeout   = 10 * time.Second
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "prospect-api",
		Short: "Prospect CRM record API",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newUsersCommand(), newTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().StringSlice("allowed-origins", nil, "CORS origins allowed to call the API (default: any)")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Database DSN or SQLite path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Session token TTL in minutes for issued tokens")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("session-issuer", defaults.GetString("tauth.issuer"), "Expected session token issuer")
	cmd.PersistentFlags().String("session-cookie", defaults.GetString("tauth.cookie_name"), "Session cookie name")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.allowed_origins", "allowed-origins")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "tauth.signing_secret", "signing-secret")
	bindFlag(cmd, "tauth.issuer", "session-issuer")
	bindFlag(cmd, "tauth.cookie_name", "session-cookie")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// environment bundles the pieces every command needs.
type environment struct {
	config config.AppConfig
	logger *zap.Logger
	db     *gorm.DB
}

func openEnvironment() (*environment, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(database.Config{Driver: appConfig.DatabaseDriver, DSN: appConfig.DatabaseDSN}, logger)
	if err != nil {
		return nil, err
	}

	return &environment{config: appConfig, logger: logger, db: db}, nil
}

func (r *environment) close() {
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = r.logger.Sync()
}

func (r *environment) directory() (*users.Directory, error) {
	return users.NewDirectory(users.DirectoryConfig{
		Database: r.db,
		Clock:    time.Now,
	})
}

func runServer(ctx context.Context) error {
	rt, err := openEnvironment()
	if err != nil {
		return err
	}
	defer rt.close()
	logger := rt.logger

	directory, err := rt.directory()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.NewPrometheusRecorder(registry)
	if err != nil {
		return err
	}

	services, err := crm.NewServices(crm.ServicesConfig{
		Database:   rt.db,
		Identities: directory,
		Clock:      time.Now,
		Logger:     logger,
		Metrics:    recorder,
	})
	if err != nil {
		return err
	}

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(rt.config.TAuthSigningKey),
		Issuer:        rt.config.TAuthIssuer,
		CookieName:    rt.config.TAuthCookieName,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		SessionValidator: sessionValidator,
		Services:         services,
		AllowedOrigins:   rt.config.AllowedOrigins,
		MetricsGatherer:  registry,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              rt.config.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", rt.config.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newUsersCommand() *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage the users that own records",
	}

	var input users.NewUser
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Provision a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openEnvironment()
			if err != nil {
				return err
			}
			defer rt.close()
			directory, err := rt.directory()
			if err != nil {
				return err
			}
			user, err := directory.Add(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), user.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&input.ID, "id", "", "User id (generated when empty)")
	addCmd.Flags().StringVar(&input.FirstName, "first-name", "", "First name")
	addCmd.Flags().StringVar(&input.LastName, "last-name", "", "Last name")
	addCmd.Flags().StringVar(&input.Email, "email", "", "Email address")
	addCmd.Flags().StringVar(&input.Role, "role", users.RoleUser, "Role (user, superAdmin)")

	deactivateCmd := &cobra.Command{
		Use:   "deactivate <user-id>",
		Short: "Soft-delete a user; their records disappear from reads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openEnvironment()
			if err != nil {
				return err
			}
			defer rt.close()
			directory, err := rt.directory()
			if err != nil {
				return err
			}
			return directory.Deactivate(cmd.Context(), args[0])
		},
	}

	usersCmd.AddCommand(addCmd, deactivateCmd)
	return usersCmd
}

func newTokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Session token utilities",
	}

	issueCmd := &cobra.Command{
		Use:   "issue <user-id>",
		Short: "Mint a session token for an active user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openEnvironment()
			if err != nil {
				return err
			}
			defer rt.close()
			directory, err := rt.directory()
			if err != nil {
				return err
			}
			caller, err := directory.ResolveCaller(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(rt.config.TAuthSigningKey),
				Issuer:        rt.config.TAuthIssuer,
				TokenTTL:      rt.config.TokenTTL,
			})
			if err != nil {
				return err
			}
			token, expiresAt, err := issuer.IssueSessionToken(cmd.Context(), auth.SessionSubject{UserID: caller.UserID})
			if err != nil {
				return err
			}
			rt.logger.Info("session token issued", zap.String("user_id", caller.UserID), zap.Time("expires_at", expiresAt))
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	tokenCmd.AddCommand(issueCmd)
	return tokenCmd
}
