package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"
	"golang.org/x/term"

	"github.com/mmcdole/flickpick/internal/adapter"
	"github.com/mmcdole/flickpick/internal/catalog"
	"github.com/mmcdole/flickpick/internal/domain"
	"github.com/mmcdole/flickpick/internal/metrics"
	"github.com/mmcdole/flickpick/internal/paging"
	"github.com/mmcdole/flickpick/internal/store"
	"github.com/mmcdole/flickpick/internal/store/rediscache"
	"github.com/mmcdole/flickpick/internal/store/sqlstore"
	"github.com/mmcdole/flickpick/internal/tmdb"
	"github.com/mmcdole/flickpick/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

// keyCheckTimeout bounds the API key check and the cache ping on start
const keyCheckTimeout = 5 * time.Second

type flags struct {
	configFile string
	category   string
	pages      int
}

func main() {
	var showVersion bool
	var f flags
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&f.configFile, "config", "", "path to config file")
	flag.StringVar(&f.category, "category", domain.CategoryPopular, "category to open or sync: popular, top_rated, genre_<id> or a genre name")
	flag.IntVar(&f.pages, "pages", 0, "pages to sync when not attached to a terminal (default from config)")
	flag.Parse()

	if showVersion {
		fmt.Printf("flickpick %s\n", Version)
		return
	}

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	adapter.LoadDotEnv()

	cfg, err := adapter.LoadConfig(f.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if f.pages > 0 {
		cfg.Paging.SyncPages = f.pages
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var accessLog io.Writer
	logger, logFile, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	} else {
		defer logFile.Close()
		accessLog = logFile
	}
	slog.SetDefault(logger)

	logger.Info("starting flickpick", "version", Version, "storage", cfg.Storage.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pageStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer pageStore.Close()

	rec := metrics.NewRecorder()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := rec.Serve(ctx, cfg.Metrics.Addr, logger, accessLog); err != nil {
				logger.Error("metrics server failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	client := tmdb.NewClient(cfg.TMDB.BaseURL, cfg.TMDB.APIKey, cfg.TMDB.Timeout, logger)
	if err := checkKey(ctx, client, logger); err != nil {
		return err
	}

	opts := catalog.Options{
		ImageBaseURL: cfg.TMDB.ImageBaseURL,
		Pager: paging.PagerConfig{
			PrefetchDistance: cfg.Paging.PrefetchDistance,
			RefreshOnStart:   cfg.Paging.RefreshOnStart,
		},
	}
	if cfg.Cache.RedisAddr != "" {
		redisClient, err := connectRedis(ctx, &cfg.Cache)
		if err != nil {
			// The cache is optional; run without it
			logger.Warn("detail cache disabled", "addr", cfg.Cache.RedisAddr, "error", err)
		} else {
			defer redisClient.Close()
			opts.DetailCache = rediscache.New(redisClient, cfg.Cache.DetailTTL)
			logger.Info("detail cache enabled", "addr", cfg.Cache.RedisAddr)
		}
	}
	svc := catalog.NewService(client, pageStore, rec, opts, logger)

	category, err := resolveCategory(ctx, svc, f.category)
	if err != nil {
		return err
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return runSync(ctx, svc, category, cfg.Paging.SyncPages, os.Stdout, os.Stderr)
	}

	model, err := tui.NewModel(ctx, svc, tui.Options{
		Category: category,
		Debounce: cfg.Search.Debounce,
		Opener:   adapter.NewOpener(cfg.Browser, logger),
	})
	if err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	logger.Info("starting TUI", "category", category)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// pageStore is the store surface main needs beyond domain.Store
type pageStore interface {
	domain.Store
	Close() error
}

func openStore(cfg *adapter.Config) (pageStore, error) {
	dir := cfg.CachePath()
	switch cfg.Storage.Driver {
	case adapter.StorageSQLite:
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		s, err := sqlstore.Open(sqlstore.DefaultConfig(filepath.Join(dir, "flickpick.sqlite")))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return s, nil
	default:
		s, err := store.Open(dir, cfg.TMDB.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		return s, nil
	}
}

func connectRedis(ctx context.Context, cfg *adapter.CacheConfig) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, keyCheckTimeout)
	defer cancel()
	return rediscache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

// checkKey rejects a bad API key up front. An unreachable service is only
// logged so cached lists stay browsable offline.
func checkKey(ctx context.Context, client *tmdb.Client, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, keyCheckTimeout)
	defer cancel()

	err := client.ValidateKey(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrAuthFailed):
		return err
	default:
		logger.Warn("could not validate api key", "error", err)
		return nil
	}
}

// resolveCategory accepts a category tag or a genre name
func resolveCategory(ctx context.Context, svc *catalog.Service, name string) (string, error) {
	name = strings.TrimSpace(name)
	if _, err := svc.Fetcher(name); err == nil {
		return name, nil
	}

	// Refresh the genre cache, falling back to whatever is stored
	if state := svc.Genres(ctx); state.Status == domain.StatusError {
		slog.Warn("genre list unavailable", "error", state.Message)
	}
	genre, ok, err := svc.LookupGenre(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %q", catalog.ErrUnknownCategory, name)
	}
	return domain.GenreCategory(genre.ID), nil
}

// runSync fetches pages of a category and prints one line per movie to w and
// a summary to status
func runSync(ctx context.Context, svc *catalog.Service, category string, pages int, w, status io.Writer) error {
	result, err := svc.Sync(ctx, category, pages)
	if err != nil {
		return fmt.Errorf("sync %s: %w", category, err)
	}

	for _, item := range result.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\n", item.ItemID, item.Title, domain.ReleaseYear(item.ReleaseDate), item.Rating)
	}

	end := ""
	if result.EndOfData {
		end = ", end of list"
	}
	fmt.Fprintf(status, "%s: %d movies from %d pages%s\n", category, len(result.Items), result.Pages, end)
	return nil
}
