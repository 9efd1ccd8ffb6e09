package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Krimson/xray-triage/internal/backend"
	"github.com/Krimson/xray-triage/internal/cache"
	"github.com/Krimson/xray-triage/internal/config"
	"github.com/Krimson/xray-triage/internal/identity"
	"github.com/Krimson/xray-triage/internal/logging"
	"github.com/Krimson/xray-triage/internal/results"
)

var (
	// Global flags
	backendURL  string
	profilePath string
	sessionID   string
	cacheDriver string
	language    string
	verbose     bool
	timeout     time.Duration

	// Собирается в PersistentPreRunE
	app *App
)

// App - зависимости одной команды CLI
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Client     *backend.Client
	Cache      cache.Store
	Identities *identity.Provider
	Capturer   *results.Capturer
	SessionID  string

	idStore identity.Store
}

// Close освобождает хранилища
func (a *App) Close() {
	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.idStore != nil {
		a.idStore.Close()
	}
	a.Logger.Sync()
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "triagectl",
	Short: "triagectl - X-ray triage from the terminal",
	Long: `triagectl talks to the triage backend directly and keeps the same
tab session cache as the gateway: scan an X-ray, browse the ranked
diseases with their reference text, and look through saved results.

Credentials are kept in a YAML profile (see --profile).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		app = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Backend base URL (or set BACKEND_URL env)")
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "Profile file (default: <config dir>/triagectl/profile.yaml)")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "", "Tab session id (default: stable per OS user)")
	rootCmd.PersistentFlags().StringVar(&cacheDriver, "cache", "", "Session cache driver: memory | redis (or set CACHE_DRIVER env)")
	rootCmd.PersistentFlags().StringVar(&language, "language", "", "Disease details language (or set DETAILS_LANGUAGE env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(oauthCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(diseasesCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(reviewsCmd)
	rootCmd.AddCommand(newsletterCmd)
	rootCmd.AddCommand(usersCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp читает конфигурацию шлюза и накладывает флаги
func newApp(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	overlayFlags(cfg)

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	} else if cfg.LogFile == "" {
		// без файла лога в терминал пишутся только ошибки
		level = "error"
	}
	logger, err := logging.New(level, cfg.LogFile)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}

	sid := sessionID
	if sid == "" {
		sid = defaultSessionID()
	}
	if _, err := uuid.Parse(sid); err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", sid, err)
	}
	a.SessionID = sid

	a.Client, err = backend.NewClient(cfg.BackendURL,
		backend.WithTimeout(cfg.BackendTimeout),
		backend.WithLogger(logger),
		backend.WithImageCDN(cfg.ImageCDNBase),
	)
	if err != nil {
		return nil, err
	}

	a.idStore, err = identity.NewFileStore(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	a.Identities = identity.NewProvider(a.idStore, logger)

	driver := cache.StoreType(cfg.CacheDriver)
	opts := []cache.Option{cache.WithTTL(cfg.SessionTTL)}
	if driver == cache.StoreTypeRedis {
		opts = append(opts, cache.WithRedisClient(cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)))
	}
	a.Cache, err = cache.NewStore(driver, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.Cache.Ping(pingCtx); err != nil {
		a.Close()
		return nil, fmt.Errorf("session cache %s unavailable (try --cache memory): %w", driver, err)
	}

	a.Capturer = results.NewCapturer(a.Client, a.Identities, a.Cache,
		results.WithLogger(logger),
		results.WithLanguage(cfg.Language),
	)

	logger.Debug("[CLI] ready",
		zap.String("backend", a.Client.BaseURL()),
		zap.String("session_id", sid),
		zap.String("cache", cfg.CacheDriver),
		zap.String("profile", cfg.ProfilePath))
	return a, nil
}

func overlayFlags(cfg *config.Config) {
	if backendURL != "" {
		cfg.BackendURL = backendURL
	}
	if cacheDriver != "" {
		cfg.CacheDriver = cacheDriver
	}
	if language != "" {
		cfg.Language = language
	}
	if profilePath != "" {
		cfg.ProfilePath = profilePath
	}
	if cfg.ProfilePath == "" {
		cfg.ProfilePath = defaultProfilePath()
	}
}

func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "triagectl", "profile.yaml")
}

// defaultSessionID - одна "вкладка" на пользователя ОС, чтобы scan и results видели один кэш
func defaultSessionID() string {
	name := "triagectl"
	if u, err := user.Current(); err == nil {
		name += ":" + u.Username
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// commandContext ограничивает команду флагом --timeout
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
