package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
	fired chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) onChange(_ context.Context, changed []string) {
	r.mu.Lock()
	r.calls = append(r.calls, changed)
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func startWatcher(t *testing.T, roots []string, opts Options) *recorder {
	t.Helper()
	w, err := New(roots, opts, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	rec := newRecorder()
	go func() {
		defer close(done)
		_ = w.Run(ctx, rec.onChange)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return rec
}

func waitFired(t *testing.T, rec *recorder) {
	t.Helper()
	select {
	case <-rec.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report changes")
	}
}

func TestWatcherDebouncesDocumentEvents(t *testing.T) {
	dir := t.TempDir()
	rec := startWatcher(t, []string{dir}, Options{Debounce: 100 * time.Millisecond, SkipHidden: true})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".~lock.pdf"), []byte("ignored"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.docx"), []byte("docx"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("pdf"), 0600))

	waitFired(t, rec)

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{filepath.Join(dir, "a.pdf"), filepath.Join(dir, "b.docx")}, calls[0])
}

func TestWatcherRecursiveFollowsNewFolders(t *testing.T) {
	dir := t.TempDir()
	rec := startWatcher(t, []string{dir}, Options{Recursive: true, Debounce: 100 * time.Millisecond})

	sub := filepath.Join(dir, "2024")
	require.NoError(t, os.Mkdir(sub, 0750))
	// Give the watcher a moment to register the new folder
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "cv.pdf"), []byte("pdf"), 0600))

	waitFired(t, rec)
	calls := rec.snapshot()
	require.NotEmpty(t, calls)
	assert.Contains(t, calls[len(calls)-1], filepath.Join(sub, "cv.pdf"))
}

func TestWatcherReportsNamedDocumentOnly(t *testing.T) {
	dir := t.TempDir()
	cv := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(cv, []byte("pdf"), 0600))

	rec := startWatcher(t, []string{cv}, Options{Recursive: true, Debounce: 100 * time.Millisecond})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.pdf"), []byte("pdf"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0750))
	require.NoError(t, os.WriteFile(cv, []byte("pdf v2"), 0600))

	waitFired(t, rec)
	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{cv}, calls[0])
}

func TestNewRejectsInvalidRoots(t *testing.T) {
	_, err := New(nil, Options{}, nil)
	require.Error(t, err)

	notes := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("text"), 0600))
	_, err = New([]string{notes}, Options{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a .pdf or .docx document")

	_, err = New([]string{filepath.Join(t.TempDir(), "missing")}, Options{}, nil)
	require.Error(t, err)
}

func TestNewAcceptsDocumentRoots(t *testing.T) {
	dir := t.TempDir()
	cv := filepath.Join(dir, "cv.pdf")
	require.NoError(t, os.WriteFile(cv, []byte("pdf"), 0600))

	w, err := New([]string{cv, dir}, Options{}, nil)
	require.NoError(t, err)
	defer w.close()

	assert.Contains(t, w.files, cv)
	assert.Contains(t, w.dirs, dir)
}
