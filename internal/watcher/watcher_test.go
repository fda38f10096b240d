package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testDebounce = 50 * time.Millisecond

type recorder struct {
	mu      sync.Mutex
	batches [][]string
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 16)}
}

func (r *recorder) onChange(paths []string) {
	r.mu.Lock()
	r.batches = append(r.batches, paths)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recorder) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change callback")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[len(r.batches)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func startWatcher(t *testing.T, roots []string, recursive bool, rec *recorder) *Watcher {
	t.Helper()
	w := New(roots, []string{".json"}, recursive, rec.onChange, WithDebounce(testDebounce))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_ReportsChangedDatasetFiles(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, []string{dir}, true, rec)

	if err := writeFile(filepath.Join(dir, "buckets.json"), `{"region":["Europe"]}`); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "notes.txt"), "ignored"); err != nil {
		t.Fatal(err)
	}

	got := rec.wait(t)
	if len(got) != 1 || !strings.HasSuffix(got[0], "buckets.json") {
		t.Errorf("expected only buckets.json, got %v", got)
	}
}

func TestWatcher_DebounceBatchesWrites(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, []string{dir}, true, rec)

	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	for i := 0; i < 3; i++ {
		if err := writeFile(a, `{"a":["x"]}`); err != nil {
			t.Fatal(err)
		}
		if err := writeFile(b, `{"b":["y"]}`); err != nil {
			t.Fatal(err)
		}
	}

	got := rec.wait(t)
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("expected sorted batch [a.json b.json], got %v", got)
	}
	time.Sleep(4 * testDebounce)
	if n := rec.count(); n != 1 {
		t.Errorf("expected one batch, got %d", n)
	}
}

func TestWatcher_ReportsRemovedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.json")
	if err := writeFile(path, `{}`); err != nil {
		t.Fatal(err)
	}
	rec := newRecorder()
	startWatcher(t, []string{dir}, false, rec)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	got := rec.wait(t)
	if len(got) != 1 || got[0] != path {
		t.Errorf("expected removed file to be reported, got %v", got)
	}
}

func TestWatcher_NewDirectoryRecursive(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, []string{dir}, true, rec)

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	deep := filepath.Join(nested, "deep.json")
	// Give the watcher a moment to add the new directories before writing.
	time.Sleep(testDebounce)
	if err := writeFile(deep, `{"deep":["x"]}`); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case <-rec.notify:
			rec.mu.Lock()
			last := rec.batches[len(rec.batches)-1]
			rec.mu.Unlock()
			for _, p := range last {
				if p == deep {
					return
				}
			}
		case <-deadline:
			t.Fatalf("deep.json never reported")
		}
	}
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	startWatcher(t, []string{root}, true, newRecorder())

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := New([]string{t.TempDir()}, nil, false, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
	if dirs := w.Directories(); len(dirs) != 1 {
		t.Errorf("Directories() = %v", dirs)
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.json", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
