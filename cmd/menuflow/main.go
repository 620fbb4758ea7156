package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/menuflow/menuflow/internal/api"
	"github.com/menuflow/menuflow/internal/engine"
	"github.com/menuflow/menuflow/internal/flow"
	"github.com/menuflow/menuflow/internal/lockfile"
	"github.com/menuflow/menuflow/internal/messaging"
	"github.com/menuflow/menuflow/internal/store"
	"github.com/menuflow/menuflow/internal/twiliowhatsapp"
	"github.com/menuflow/menuflow/internal/util"
	"github.com/menuflow/menuflow/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for MenuFlow state data
	DefaultStateDir = "/var/lib/menuflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "menuflow.db"
	// BackendWhatsApp selects the whatsmeow messaging backend
	BackendWhatsApp = "whatsapp"
	// BackendTwilio selects the Twilio messaging backend
	BackendTwilio = "twilio"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := os.MkdirAll(*flags.stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", *flags.stateDir)
		os.Exit(1)
	}

	// One instance per state directory; the lock is released on exit.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	if err := run(flags); err != nil {
		slog.Error("MenuFlow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("MenuFlow exited successfully")
}

// run wires the flow, engine, store, messaging service, responder, and API
// server together and blocks until shutdown.
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Flow definition: file if configured, compiled-in default otherwise.
	var f *flow.Flow
	if *flags.flowFile != "" {
		loaded, err := flow.LoadFile(*flags.flowFile)
		if err != nil {
			return err
		}
		f = loaded
	} else {
		f = flow.Default()
		slog.Info("No flow file configured, using built-in flow", "flow", f.Name())
	}

	// Persistence adapter.
	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	// Messaging backend.
	msgService, err := buildMessagingService(flags)
	if err != nil {
		return err
	}

	eng := engine.New(f)
	eng.AddListener(store.NewRecorder(st, f.Name()))

	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer msgService.Stop()

	responder := messaging.NewResponder(eng, msgService, st)
	responder.Start(ctx)

	server := api.NewServer(eng, msgService, st, buildAPIOptions(flags)...)
	slog.Info("Bootstrapping MenuFlow", "flow", f.Name(), "steps", f.Len(), "backend", *flags.backend)
	return server.Run(ctx)
}

// Config holds environment configuration
type Config struct {
	StateDir    string
	DatabaseURL string
	FlowFile    string
	APIAddr     string
	Backend     string
	TwilioSID   string
	TwilioToken string
	TwilioFrom  string
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	flowFile    *string
	apiAddr     *string
	backend     *string
	qrOutput    *string
	numeric     *bool
	twilioSID   *string
	twilioToken *string
	twilioFrom  *string
}

// initializeLogger sets up structured logging
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("MENUFLOW_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:    os.Getenv("MENUFLOW_STATE_DIR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		FlowFile:    os.Getenv("FLOW_FILE"),
		APIAddr:     os.Getenv("API_ADDR"),
		Backend:     os.Getenv("MESSAGING_BACKEND"),
		TwilioSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken: os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:  os.Getenv("TWILIO_FROM_NUMBER"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No MENUFLOW_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.Backend == "" {
		config.Backend = BackendWhatsApp
	}

	slog.Debug("environment variables loaded",
		"MENUFLOW_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"FLOW_FILE", config.FlowFile,
		"API_ADDR", config.APIAddr,
		"MESSAGING_BACKEND", config.Backend)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for MenuFlow data (overrides $MENUFLOW_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN for the session store (overrides $DATABASE_URL)"),
		flowFile:    flag.String("flow-file", config.FlowFile, "path to a YAML flow definition (overrides $FLOW_FILE)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		backend:     flag.String("backend", config.Backend, "messaging backend: whatsapp or twilio (overrides $MESSAGING_BACKEND)"),
		qrOutput:    flag.String("qr-output", "", "path to write login QR code"),
		numeric:     flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		twilioSID:   flag.String("twilio-account-sid", config.TwilioSID, "Twilio account SID (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken: flag.String("twilio-auth-token", config.TwilioToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFrom:  flag.String("twilio-from", config.TwilioFrom, "Twilio WhatsApp sender number (overrides $TWILIO_FROM_NUMBER)"),
	}

	flag.Parse()

	// Default to SQLite in the state directory when no DSN is configured.
	if *flags.dbDSN == "" {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", *flags.dbDSN)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"flowFile", *flags.flowFile,
		"apiAddr", *flags.apiAddr,
		"backend", *flags.backend)

	return flags
}

// buildStore selects a store backend by DSN type.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildMessagingService constructs the configured messaging backend.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	switch *flags.backend {
	case BackendTwilio:
		client, err := twiliowhatsapp.NewClient(buildTwilioOptions(flags)...)
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client), nil
	default:
		client, err := whatsapp.NewClient(buildWhatsAppOptions(flags)...)
		if err != nil {
			return nil, err
		}
		return messaging.NewWhatsAppService(client), nil
	}
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	waOpts = append(waOpts, whatsapp.WithDBDSN(filepath.Join(*flags.stateDir, "whatsmeow.db")))
	return waOpts
}

// buildTwilioOptions constructs Twilio configuration options
func buildTwilioOptions(flags Flags) []twiliowhatsapp.Option {
	var twOpts []twiliowhatsapp.Option
	if *flags.twilioSID != "" {
		twOpts = append(twOpts, twiliowhatsapp.WithAccountSID(*flags.twilioSID))
	}
	if *flags.twilioToken != "" {
		twOpts = append(twOpts, twiliowhatsapp.WithAuthToken(*flags.twilioToken))
	}
	if *flags.twilioFrom != "" {
		twOpts = append(twOpts, twiliowhatsapp.WithFromWhats(*flags.twilioFrom))
	}
	return twOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
