// Package daemon provides the asset intake service daemon.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/assetsentry/assetsentry/internal/auth"
	"github.com/assetsentry/assetsentry/internal/cli"
	"github.com/assetsentry/assetsentry/internal/common/constants"
	"github.com/assetsentry/assetsentry/internal/intake"
	"github.com/assetsentry/assetsentry/internal/intake/checks"
	"github.com/assetsentry/assetsentry/internal/storage/database"
	"github.com/assetsentry/assetsentry/internal/storage/objectstore"
	"github.com/assetsentry/assetsentry/internal/webservice"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	daemon *webservice.Server

	ready chan struct{}
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int
	JSONLogs  bool

	Daemon      webservice.StaticConfig
	DBconfig    database.Config
	ObjectStore objectstore.Config
	Auth        auth.Config

	MigrationsDir string
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{ready: make(chan struct{})}

	a.cmd = &cobra.Command{
		Use:   constants.CmdName,
		Short: "Asset compliance intake service",
		Long: "Asset compliance intake service accepts security checklist submissions over HTTP, " +
			"offloads embedded photo evidence to object storage, and serves the authenticated review API.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to strictly decode configuration into struct: %w", err)
			}
			slog.Info("got app config", "config", a.config)

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Update logging after loading config if necessary
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cmd.SilenceUsage = true

			return a.run()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	installMigrateCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	defaultConf := webservice.StaticConfig{
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		RequestTimeout: 3 * time.Second,
		MaxHeaderBytes: 1 << 13, // 8 KB
		MaxUploadBytes: 1 << 24, // 16 MB, payloads carry base64 photos
		ListenPort:     8080,
		MetricsPort:    2112,
	}

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")

	// Daemon flags
	cmd.Flags().StringVar(&app.config.Daemon.ChecksPath, "checks-config", "", "path to the check definitions file")

	cmd.Flags().DurationVar(&app.config.Daemon.ReadTimeout, "read-timeout", defaultConf.ReadTimeout, "read timeout for HTTP server")
	cmd.Flags().DurationVar(&app.config.Daemon.WriteTimeout, "write-timeout", defaultConf.WriteTimeout, "write timeout for HTTP server")
	cmd.Flags().DurationVar(&app.config.Daemon.RequestTimeout, "request-timeout", defaultConf.RequestTimeout, "request timeout for HTTP server")
	cmd.Flags().IntVar(&app.config.Daemon.MaxHeaderBytes, "max-header-bytes", defaultConf.MaxHeaderBytes, "maximum header bytes for HTTP server")
	cmd.Flags().IntVar(&app.config.Daemon.MaxUploadBytes, "max-upload-bytes", defaultConf.MaxUploadBytes, "maximum upload bytes for HTTP server")

	cmd.Flags().StringVar(&app.config.Daemon.ListenHost, "listen-host", defaultConf.ListenHost, "host to listen on")
	cmd.Flags().IntVar(&app.config.Daemon.ListenPort, "listen-port", defaultConf.ListenPort, "port to listen on")

	cmd.Flags().StringVar(&app.config.Daemon.MetricsHost, "metrics-host", defaultConf.MetricsHost, "host for the metrics endpoint")
	cmd.Flags().IntVar(&app.config.Daemon.MetricsPort, "metrics-port", defaultConf.MetricsPort, "port for the metrics endpoint")

	cmd.Flags().BoolVar(&app.config.Daemon.RequireIntakeAuth, "require-intake-auth", false, "require a session to submit checklists")

	addDBFlags(cmd, &app.config.DBconfig)
	addObjectStoreFlags(cmd, &app.config.ObjectStore)
	addAuthFlags(cmd, &app.config.Auth)

	if err := cmd.MarkFlagFilename("checks-config"); err != nil {
		panic(fmt.Sprintf("failed to mark checks-config flag as filename: %v", err))
	}
}

func addDBFlags(cmd *cobra.Command, config *database.Config) {
	cmd.Flags().StringVar(&config.Host, "db-host", "", "database host")
	cmd.Flags().IntVarP(&config.Port, "db-port", "p", 5432, "database port")
	cmd.Flags().StringVarP(&config.User, "db-user", "u", "", "database user")
	cmd.Flags().StringVarP(&config.Password, "db-password", "P", "", "database password")
	cmd.Flags().StringVarP(&config.DBName, "db-name", "n", "", "database name")
	cmd.Flags().StringVarP(&config.SSLMode, "db-sslmode", "s", "", "database SSL mode")
}

func addObjectStoreFlags(cmd *cobra.Command, config *objectstore.Config) {
	cmd.Flags().StringVar(&config.Endpoint, "store-endpoint", "", "object store endpoint")
	cmd.Flags().StringVar(&config.AccessKey, "store-access-key", "", "object store access key")
	cmd.Flags().StringVar(&config.SecretKey, "store-secret-key", "", "object store secret key")
	cmd.Flags().StringVar(&config.Bucket, "store-bucket", constants.PhotoBucket, "object store bucket for photo evidence")
	cmd.Flags().BoolVar(&config.UseSSL, "store-use-ssl", false, "use TLS for object store connections")
	cmd.Flags().StringVar(&config.PublicBaseURL, "store-public-url", "", "externally reachable base URL for stored photos")
}

func addAuthFlags(cmd *cobra.Command, config *auth.Config) {
	cmd.Flags().StringVar(&config.Secret, "session-secret", "", "secret used to sign session tokens")
	cmd.Flags().DurationVar(&config.Lifetime, "session-lifetime", constants.DefaultSessionLifetime*time.Second, "lifetime of issued session tokens")
	cmd.Flags().BoolVar(&config.SecureCookies, "secure-cookies", false, "mark session cookies Secure")
}

// Run executes the command and associated process, returning an error if any.
func (a App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup prints all goroutine stack traces and return false to signal you shouldn't quit.
func (a App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	fmt.Printf("%s", buf)
	return false
}

// Quit gracefully shuts down the daemon.
func (a *App) Quit() {
	a.WaitReady()
	if a.daemon != nil {
		a.daemon.Quit(false)
	}
}

// WaitReady waits for the daemon to be ready.
func (a *App) WaitReady() {
	<-a.ready
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

func (a *App) run() (err error) {
	a.config.Daemon.ChecksPath, err = filepath.Abs(a.config.Daemon.ChecksPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for check definitions file: %v", err)
	}
	cm := checks.New(a.config.Daemon.ChecksPath)

	db, err := database.New(context.Background(), a.config.DBconfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	store, err := objectstore.New(context.Background(), a.config.ObjectStore)
	if err != nil {
		return fmt.Errorf("failed to connect to object store: %v", err)
	}

	registry := prometheus.NewRegistry()
	pipeline, err := intake.New(store, registry)
	if err != nil {
		return fmt.Errorf("failed to create submission pipeline: %v", err)
	}

	deps := webservice.Deps{
		Pipeline: pipeline,
		Store:    db,
		Users:    db,
		Sessions: auth.New(a.config.Auth),
	}

	a.daemon, err = webservice.New(context.Background(), cm, deps, a.config.Daemon, registry)
	close(a.ready)
	if err != nil {
		return fmt.Errorf("failed to create server: %v", err)
	}

	return a.daemon.Run()
}
