// Package main is the shelf CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"github.com/recipeshelf/shelf/internal/buckets"
	"github.com/recipeshelf/shelf/internal/cli"
	"github.com/recipeshelf/shelf/internal/config"
	"github.com/recipeshelf/shelf/internal/handler"
	"github.com/recipeshelf/shelf/internal/keyword"
	"github.com/recipeshelf/shelf/internal/models"
	"github.com/recipeshelf/shelf/internal/search"
	"github.com/recipeshelf/shelf/internal/seed"
	"github.com/recipeshelf/shelf/internal/server"
	"github.com/recipeshelf/shelf/internal/storage"
	"github.com/recipeshelf/shelf/internal/watcher"
	"github.com/recipeshelf/shelf/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shelf/config.yaml"

// loadConfig loads .env (if present) and then the config at path. When path is
// the default, ./config.yaml is preferred if it exists; when neither exists the
// built-in defaults plus environment are used. Returns the config and the path
// actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	_ = godotenv.Load()

	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "lambda":
		runLambda()
	case "get":
		runGet()
	case "load":
		runLoad()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("shelf version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (store reads, dataset reloads, watcher events)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("store_driver", cfg.Store.Driver),
		zap.Bool("debug", debugMode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, cfg.Search.IndexPath, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	loader := seed.NewLoader(components.Storage, cfg.Seed.Files,
		seed.WithLogger(logger),
		seed.WithDirectories(cfg.Seed.WatchDirectories, cfg.Seed.Extensions, cfg.Seed.RecursiveOrDefault()),
		seed.WithAfterLoad(func(ctx context.Context, _ *models.Dataset) error {
			return components.Engine.Reindex(ctx, components.Storage)
		}),
	)
	sources, err := loader.Sources()
	if err != nil {
		logger.Fatal("Failed to discover datasets", zap.Error(err))
	}
	if len(sources) > 0 {
		if _, err := loader.Reload(ctx); err != nil {
			logger.Fatal("Initial dataset load failed", zap.Error(err))
		}
	} else if err := components.Engine.Reindex(ctx, components.Storage); err != nil {
		// The store was loaded externally; search still works after the next reload.
		logger.Warn("initial item index build failed", zap.Error(err))
	}

	var watchSvc *watcher.Watcher
	if len(cfg.Seed.WatchDirectories) > 0 {
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.New(
			cfg.Seed.WatchDirectories,
			cfg.Seed.Extensions,
			cfg.Seed.RecursiveOrDefault(),
			func(paths []string) {
				logger.Info("dataset files changed", zap.Strings("paths", paths))
				if _, err := loader.Reload(ctx); err != nil {
					logger.Warn("dataset reload failed", zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	var watch server.WatchService
	if watchSvc != nil {
		watch = watchSvc
	}
	srv := server.NewServer(components.Service, components.Storage, components.Engine, loader, watch, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// runLambda serves bucket events from the AWS Lambda runtime. The store is
// read-only here; datasets are loaded into the cache out of band.
func runLambda() {
	fs := flag.NewFlagSet("lambda", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (optional; CACHE_ENDPOINT is enough)")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := storage.Open(context.Background(), &cfg.Store)
	if err != nil {
		logger.Fatal("Failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer store.Close()

	h := handler.New(newService(cfg, store, logger), logger)
	lambda.Start(h.Handle)
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument, so "shelf get cuisine --chat"
// would otherwise leave --chat unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinArgs joins positional args with spaces so multi-word names work the
// same with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runGet() {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct store access)")
	serverURL := fs.String("server", "", "server URL (empty = read the store directly)")
	forChat := fs.Bool("chat", false, "return the chat gallery instead of names")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: shelf get [flags] <bucket>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	bucket := joinArgs(fs.Args())
	if bucket == "" {
		fs.Usage()
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	var res *buckets.Result
	if *serverURL != "" {
		r, err := getViaHTTP(*serverURL, bucket, *forChat)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
			os.Exit(1)
		}
		res = r
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewCLILogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()

		ctx := context.Background()
		store, err := storage.Open(ctx, &cfg.Store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		res, err = newService(cfg, store, logger).Handle(ctx, &models.Request{Bucket: bucket, ForChat: *forChat})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteBucketResult(os.Stdout, bucket, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func bucketURL(serverURL, bucket string, forChat bool) string {
	u := strings.TrimRight(serverURL, "/") + "/api/v1/buckets/" + url.PathEscape(bucket)
	if forChat {
		u += "?chat=true"
	}
	return u
}

func getViaHTTP(serverURL, bucket string, forChat bool) (*buckets.Result, error) {
	resp, err := http.Get(bucketURL(serverURL, bucket, forChat))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	return cli.DecodeBucketResult(resp.Body, forChat)
}

func runLoad() {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "ask a running server to reload its configured datasets instead")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: shelf load [flags] [dataset.json ...]\n\n")
		fmt.Fprintf(fs.Output(), "Replaces the store contents with the given datasets (default: seed.files from config).\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if *serverURL != "" {
		if err := reloadViaHTTP(*serverURL); err != nil {
			fmt.Fprintf(os.Stderr, "Reload failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Server reloaded datasets")
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	files := fs.Args()
	if len(files) == 0 {
		files = cfg.Seed.Files
	}
	if len(files) == 0 {
		fs.Usage()
		os.Exit(1)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	store, err := storage.Open(ctx, &cfg.Store)
	if err != nil {
		fmt.Printf("Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ds, err := seed.LoadFiles(ctx, store, files...)
	if err != nil {
		fmt.Printf("Load failed: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("datasets loaded", zap.Strings("files", files))
	fmt.Printf("Loaded %d bucket(s), %d member(s) from %d file(s)\n", len(ds.Buckets), ds.MemberCount(), len(files))
}

func reloadViaHTTP(serverURL string) error {
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/reload", "application/json", nil)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return checkResponse(resp)
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: shelf search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
When nothing matches exactly, the search is retried with typo tolerance.

Examples:
  shelf search indian
  shelf search --bucket collections rice
  shelf search --fuzzy curies
  shelf search --output json --limit 20 dishes
`)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct store access)")
	serverURL := fs.String("server", "", "server URL (empty = search the store directly)")
	limit := fs.Int("limit", 0, "number of results (default from config)")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	bucket := fs.String("bucket", "", "restrict results to one bucket")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	queryStr := joinArgs(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	query := &models.SearchQuery{Query: queryStr, Limit: *limit, FuzzyEnabled: *fuzzy, Bucket: *bucket}

	var response *models.SearchResponse
	if *serverURL != "" {
		r, err := searchViaHTTP(*serverURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		response = r
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewCLILogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()

		ctx := context.Background()
		// An in-memory index avoids contending with a running server for the on-disk one.
		components, err := initializeComponents(ctx, cfg, "", logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		if err := components.Engine.Reindex(ctx, components.Storage); err != nil {
			fmt.Fprintf(os.Stderr, "Index failed: %v\n", err)
			os.Exit(1)
		}
		response, err = components.Engine.Search(ctx, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchURL(serverURL string, query *models.SearchQuery) string {
	v := url.Values{}
	v.Set("q", query.Query)
	if query.Limit > 0 {
		v.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.FuzzyEnabled {
		v.Set("fuzzy", "true")
	}
	if query.Bucket != "" {
		v.Set("bucket", query.Bucket)
	}
	return strings.TrimRight(serverURL, "/") + "/api/v1/search?" + v.Encode()
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	resp, err := http.Get(searchURL(serverURL, query))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct store access)")
	serverURL := fs.String("server", "", "server URL (empty = read the store directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var status cli.Status
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		ctx := context.Background()
		store, err := storage.Open(ctx, &cfg.Store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		names, err := store.Buckets(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "List buckets failed: %v\n", err)
			os.Exit(1)
		}
		status = cli.Status{Buckets: len(names), Driver: cfg.Store.Driver}
		if diskBytes, err := storage.DiskUsageBytes(cfg.Store.DatabasePath, cfg.Search.IndexPath); err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}
	if err := cli.WriteStatus(os.Stdout, &status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*cli.Status, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var s cli.Status
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// checkResponse turns a non-200 response into an error carrying the server's message.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	b, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

// Components holds initialized services.
type Components struct {
	Storage storage.Storage
	Index   keyword.ItemIndex
	Engine  *search.Engine
	Service *buckets.Service
}

func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func newService(cfg *config.Config, store buckets.MemberLister, logger *zap.Logger) *buckets.Service {
	urls := buckets.NewURLBuilder(cfg.Gallery.ImageBase, cfg.Gallery.SiteBase, cfg.Gallery.Paths)
	return buckets.NewService(store, buckets.WithURLBuilder(urls), buckets.WithLogger(logger))
}

func initializeComponents(ctx context.Context, cfg *config.Config, indexPath string, logger *zap.Logger) (*Components, error) {
	store, err := storage.Open(ctx, &cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	index, err := keyword.NewBleveIndex(indexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize item index: %w", err)
	}
	return &Components{
		Storage: store,
		Index:   index,
		Engine:  search.NewEngine(index, &cfg.Search, logger),
		Service: newService(cfg, store, logger),
	}, nil
}

func printUsage() {
	fmt.Println(`shelf - recipe bucket lookups for chat and web

Usage:
  shelf server [flags]             Start the HTTP server
  shelf lambda [flags]             Serve bucket events from the AWS Lambda runtime
  shelf get [flags] <bucket>       Show a bucket's items or chat gallery
  shelf load [flags] [file ...]    Replace the store contents with datasets
  shelf search [flags] <query>     Search item names across buckets
  shelf status [flags]             Show store/index status
  shelf version                    Show version
  shelf help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/shelf/config.yaml)
  --debug            Enable debug logging

Get Flags:
  --chat             Return the chat gallery instead of names
  --server string    Server URL; empty reads the store directly
  --output string    Output format: text, compact, or json (default: text)

Load Flags:
  --server string    Ask a running server to reload its configured datasets

Search Flags:
  --limit int        Number of results (default from config)
  --fuzzy            Enable fuzzy matching for typo tolerance
  --bucket string    Restrict results to one bucket
  --server string    Server URL; empty searches the store directly
  --output string    Output format: text, compact, or json (default: text)

Status Flags:
  --server string    Server URL; empty reads the store directly
  --output string    Output format: text or json (default: text)

Environment:
  CACHE_ENDPOINT       Redis endpoint (host:port or redis:// URL); selects the redis store
  SHELF_STORE_DRIVER   redis, sqlite, or memory
  SHELF_DB_PATH        SQLite database path
  PORT                 HTTP port
  A .env file in the working directory is loaded first.

Examples:
  shelf load data/buckets.json
  shelf get collections
  shelf get cuisine --chat --output json
  shelf search --fuzzy curies
  shelf status --server http://localhost:8080`)
}
