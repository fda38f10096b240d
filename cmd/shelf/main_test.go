package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/recipeshelf/shelf/internal/config"
	"github.com/recipeshelf/shelf/internal/models"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after bucket are moved first",
			args:     []string{"cuisine", "--chat", "--output", "json"},
			expected: []string{"--chat", "--output", "json", "cuisine"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"--chat", "cuisine"},
			expected: []string{"--chat", "cuisine"},
		},
		{
			name:     "positional only returns unchanged",
			args:     []string{"collections"},
			expected: []string{"collections"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"rice", "dishes", "-limit", "5"},
			expected: []string{"-limit", "5", "rice", "dishes"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"collections"}, "collections"},
		{"multiple words", []string{"rice", "dishes"}, "rice dishes"},
		{"single quoted phrase", []string{"south indian"}, "south indian"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := joinArgs(tt.args)
			if got != tt.expected {
				t.Errorf("joinArgs(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestBucketURL(t *testing.T) {
	tests := []struct {
		server  string
		bucket  string
		forChat bool
		want    string
	}{
		{"http://localhost:8080", "region", false, "http://localhost:8080/api/v1/buckets/region"},
		{"http://localhost:8080/", "cuisine", true, "http://localhost:8080/api/v1/buckets/cuisine?chat=true"},
		{"http://h", "south indian", false, "http://h/api/v1/buckets/south%20indian"},
	}
	for _, tt := range tests {
		if got := bucketURL(tt.server, tt.bucket, tt.forChat); got != tt.want {
			t.Errorf("bucketURL(%q, %q, %v) = %q, want %q", tt.server, tt.bucket, tt.forChat, got, tt.want)
		}
	}
}

func TestSearchURL(t *testing.T) {
	got := searchURL("http://localhost:8080", &models.SearchQuery{Query: "rice dishes", Limit: 5, FuzzyEnabled: true, Bucket: "collections"})
	want := "http://localhost:8080/api/v1/search?bucket=collections&fuzzy=true&limit=5&q=rice+dishes"
	if got != want {
		t.Errorf("searchURL() = %q, want %q", got, want)
	}
	got = searchURL("http://h", &models.SearchQuery{Query: "x"})
	if got != "http://h/api/v1/search?q=x" {
		t.Errorf("searchURL() = %q", got)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
}

// clearEnv unsets keys for the duration of the test, restoring them afterwards.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	clearEnv(t, "CACHE_ENDPOINT", "SHELF_STORE_DRIVER", "SHELF_DB_PATH", "PORT")
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
store:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	clearEnv(t, "CACHE_ENDPOINT", "SHELF_STORE_DRIVER", "SHELF_DB_PATH", "PORT")
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
store:
  driver: memory
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Store.Driver != config.DriverMemory {
		t.Errorf("driver = %q, want memory", cfg.Store.Driver)
	}
}

func TestLoadConfig_explicitPathMissing(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing explicit config")
	}
}

func TestLoadConfig_defaultsFromDotEnv(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config exists at the default path")
	}
	clearEnv(t, "CACHE_ENDPOINT", "SHELF_STORE_DRIVER", "SHELF_DB_PATH", "PORT")
	dir := t.TempDir()
	env := "CACHE_ENDPOINT=cache.local:6379\nPORT=9300\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want built-in defaults", resolved)
	}
	if cfg.Store.Driver != config.DriverRedis || cfg.Store.CacheEndpoint != "cache.local:6379" {
		t.Errorf("store config from .env = %+v", cfg.Store)
	}
	if cfg.Server.Port != 9300 {
		t.Errorf("port = %d, want 9300", cfg.Server.Port)
	}
}

type staticLister map[string][]string

func (s staticLister) ListMembers(_ context.Context, bucket string) ([]string, error) {
	return s[bucket], nil
}

func TestNewService_usesGalleryConfig(t *testing.T) {
	cfg := &config.Config{Gallery: config.GalleryConfig{
		SiteBase: "https://example.test/",
		Paths:    map[string]string{"collections": "collection"},
	}}
	svc := newService(cfg, staticLister{"collections": {"Curries"}}, zap.NewNop())

	res, err := svc.Handle(context.Background(), &models.Request{Bucket: "collections", ForChat: true})
	if err != nil {
		t.Fatal(err)
	}
	elems := res.Gallery.Elements()
	if len(elems) != 1 || elems[0].ItemURL != "https://example.test/collection/curries/" {
		t.Errorf("elements = %+v", elems)
	}
}
