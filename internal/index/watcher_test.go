package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReindexesNewFile(t *testing.T) {
	docs := t.TempDir()
	ix, idx := newTestIndexer(t, docs, "")

	w, err := NewWatcher(ix, 50*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	writeDoc(t, docs, "sqs-guide.md", "# SQS Guide\n\nQueues decouple producers from consumers.\n")

	require.Eventually(t, func() bool {
		return idx.count() > 0
	}, 5*time.Second, 20*time.Millisecond, "new markdown file should be indexed")

	entry := idx.first()
	assert.Equal(t, "sqs", entry.Metadata.ServiceName)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on context cancellation")
	}
}

func TestWatcher_ReindexesFileInSubdirectory(t *testing.T) {
	docs := t.TempDir()
	sub := filepath.Join(docs, "storage")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	ix, idx := newTestIndexer(t, docs, "")
	w, err := NewWatcher(ix, 50*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	writeDoc(t, sub, "s3-lifecycle.md", "# S3 Lifecycle\n\nRules expire old object versions automatically.\n")

	require.Eventually(t, func() bool {
		return idx.count() > 0
	}, 5*time.Second, 20*time.Millisecond, "markdown in a subdirectory should be indexed")
	assert.Equal(t, "s3", idx.first().Metadata.ServiceName)
}

func TestWatcher_PicksUpNewSubdirectory(t *testing.T) {
	docs := t.TempDir()
	ix, idx := newTestIndexer(t, docs, "")

	w, err := NewWatcher(ix, 50*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	sub := filepath.Join(docs, "compute")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeDoc(t, sub, "ec2-autoscaling.md", "# EC2 Auto Scaling\n\nGroups keep capacity at the desired count.\n")

	require.Eventually(t, func() bool {
		return idx.count() > 0
	}, 5*time.Second, 20*time.Millisecond, "markdown in a directory created after startup should be indexed")
	assert.Equal(t, "ec2", idx.first().Metadata.ServiceName)
}

func TestWatcher_IgnoresNonMarkdown(t *testing.T) {
	docs := t.TempDir()
	ix, idx := newTestIndexer(t, docs, "")

	w, err := NewWatcher(ix, 50*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	writeDoc(t, docs, "scratch.txt", "not documentation")

	// Give the debounce window ample time to fire if it was going to.
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, idx.count())
}

func TestNewWatcher_MissingDirectory(t *testing.T) {
	ix, _ := newTestIndexer(t, "/nonexistent/docs", "")

	_, err := NewWatcher(ix, 0, nil)

	require.Error(t, err)
}
