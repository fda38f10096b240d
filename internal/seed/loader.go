package seed

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/recipeshelf/shelf/internal/models"
	"github.com/recipeshelf/shelf/pkg/utils"
	"go.uber.org/zap"
)

// Replacer is the store capability the loader needs.
type Replacer interface {
	Replace(ctx context.Context, ds *models.Dataset) error
}

// AfterLoadFunc runs after a dataset has been written to the store.
type AfterLoadFunc func(ctx context.Context, ds *models.Dataset) error

// Loader reloads the store from a fixed set of dataset files plus any
// matching files found under its directories.
type Loader struct {
	store      Replacer
	files      []string
	dirs       []string
	extensions []string
	recursive  bool
	afterLoad  []AfterLoadFunc
	logger     *zap.Logger

	mu         sync.Mutex
	lastLoaded time.Time
	lastCount  int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// WithDirectories adds directories scanned for dataset files on every reload.
// extensions filters file names (empty = all); recursive descends into subdirectories.
func WithDirectories(dirs, extensions []string, recursive bool) LoaderOption {
	return func(ld *Loader) {
		ld.dirs = append(ld.dirs, dirs...)
		ld.extensions = extensions
		ld.recursive = recursive
	}
}

// WithAfterLoad registers fn to run after each successful load.
func WithAfterLoad(fn AfterLoadFunc) LoaderOption {
	return func(ld *Loader) { ld.afterLoad = append(ld.afterLoad, fn) }
}

// NewLoader creates a loader writing to store.
func NewLoader(store Replacer, files []string, opts ...LoaderOption) *Loader {
	l := &Loader{
		store:  store,
		files:  files,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Sources returns the dataset files a reload would read, deduplicated and
// with directory matches sorted after the configured files.
func (l *Loader) Sources() ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		clean := filepath.Clean(p)
		if _, ok := seen[clean]; ok {
			return
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	for _, f := range l.files {
		add(f)
	}
	for _, dir := range l.dirs {
		found, err := discover(dir, l.extensions, l.recursive)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	return out, nil
}

// Reload parses every source, merges them, and replaces the store contents.
// Reloads are serialized. With no sources the store is left untouched.
func (l *Loader) Reload(ctx context.Context) (*models.Dataset, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sources, err := l.Sources()
	if err != nil {
		return nil, fmt.Errorf("failed to discover datasets: %w", err)
	}
	if len(sources) == 0 {
		l.logger.Debug("no dataset files to load")
		return &models.Dataset{}, nil
	}
	ds, err := LoadFiles(ctx, l.store, sources...)
	if err != nil {
		return nil, err
	}
	for _, fn := range l.afterLoad {
		if err := fn(ctx, ds); err != nil {
			return ds, fmt.Errorf("after load: %w", err)
		}
	}
	l.lastLoaded = time.Now()
	l.lastCount = len(ds.Buckets)
	l.logger.Info("datasets loaded",
		zap.Strings("files", sources),
		zap.Int("buckets", len(ds.Buckets)),
		zap.Int("members", ds.MemberCount()),
	)
	return ds, nil
}

// LastLoad returns when the store was last loaded and how many buckets it received.
func (l *Loader) LastLoad() (time.Time, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastLoaded, l.lastCount
}

// LoadFiles parses paths, merges them in order, and replaces the store contents.
func LoadFiles(ctx context.Context, store Replacer, paths ...string) (*models.Dataset, error) {
	sets := make([]*models.Dataset, 0, len(paths))
	for _, p := range paths {
		ds, err := ParseFile(p)
		if err != nil {
			return nil, err
		}
		sets = append(sets, ds)
	}
	merged := Merge(sets...)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	if err := store.Replace(ctx, merged); err != nil {
		return nil, fmt.Errorf("failed to load datasets into store: %w", err)
	}
	return merged, nil
}

func discover(dir string, extensions []string, recursive bool) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if utils.MatchExtension(path, extensions) {
			found = append(found, path)
		}
		return nil
	})
	sort.Strings(found)
	return found, err
}

