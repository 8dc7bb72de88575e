package vector

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/vibhup/docrag/internal/errors"
)

const (
	recordsFile = "records.db"
	graphFile   = "vectors.hnsw"
	lockFile    = ".lock"
)

// LocalConfig configures an on-disk vector index.
type LocalConfig struct {
	// Dir is the index directory. Created if missing.
	Dir string

	// Dimensions fixes the vector dimension. Zero adopts the dimension of
	// the first inserted vector.
	Dimensions int

	// HNSW graph parameters. Zero values use library recommendations.
	M        int
	EfSearch int
}

// LocalIndex is a single-writer on-disk index: an HNSW graph for vectors
// plus a SQLite table for metadata, guarded by a directory lock so two
// processes never write the same index.
type LocalIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	db      *sql.DB
	lock    *flock.Flock
	config  LocalConfig
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	dirty   bool
	closed  bool
}

var _ Index = (*LocalIndex)(nil)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id        TEXT PRIMARY KEY,
	vec_key         INTEGER NOT NULL UNIQUE,
	service_name    TEXT NOT NULL DEFAULT '',
	document_type   TEXT NOT NULL DEFAULT '',
	source_file     TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	section         TEXT NOT NULL DEFAULT '',
	content_preview TEXT NOT NULL DEFAULT '',
	content_length  INTEGER NOT NULL DEFAULT 0,
	token_count     INTEGER NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_chunks_service ON chunks(service_name);
`

// OpenLocal opens or creates a local index. The directory lock is held
// until Close; a second opener fails fast instead of corrupting the index.
func OpenLocal(cfg LocalConfig) (*LocalIndex, error) {
	if cfg.Dir == "" {
		return nil, errors.ConfigError("index directory is required", nil)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeRecordWrite, "failed to create index directory", err)
	}

	lock := flock.New(filepath.Join(cfg.Dir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.New(errors.ErrCodeIndexLocked, "failed to acquire index lock", err)
	}
	if !locked {
		return nil, errors.New(errors.ErrCodeIndexLocked,
			fmt.Sprintf("index at %s is locked by another process", cfg.Dir), nil)
	}

	idx := &LocalIndex{
		lock:   lock,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}

	if err := idx.openRecords(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	if err := idx.openGraph(); err != nil {
		_ = idx.db.Close()
		_ = lock.Unlock()
		return nil, err
	}

	return idx, nil
}

func (l *LocalIndex) openRecords() error {
	path := filepath.Join(l.config.Dir, recordsFile)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.New(errors.ErrCodeRecordWrite, "failed to open records database", err)
	}

	// WAL must be set via PRAGMA; DSN params are ignored by this driver.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return errors.New(errors.ErrCodeRecordWrite, "failed to enable WAL", err)
	}
	if _, err := db.Exec(recordsSchema); err != nil {
		_ = db.Close()
		return errors.New(errors.ErrCodeCorruptIndex, "failed to create records schema", err)
	}

	rows, err := db.Query("SELECT chunk_id, vec_key FROM chunks")
	if err != nil {
		_ = db.Close()
		return errors.New(errors.ErrCodeCorruptIndex, "failed to read record keys", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		var key uint64
		if err := rows.Scan(&id, &key); err != nil {
			_ = db.Close()
			return errors.New(errors.ErrCodeCorruptIndex, "failed to scan record key", err)
		}
		l.idMap[id] = key
		l.keyMap[key] = id
		if key >= l.nextKey {
			l.nextKey = key + 1
		}
	}
	if err := rows.Err(); err != nil {
		_ = db.Close()
		return errors.New(errors.ErrCodeCorruptIndex, "failed to iterate record keys", err)
	}

	l.db = db
	return nil
}

func (l *LocalIndex) openGraph() error {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = l.config.M
	graph.EfSearch = l.config.EfSearch

	path := filepath.Join(l.config.Dir, graphFile)
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		if len(l.idMap) > 0 {
			return errors.New(errors.ErrCodeCorruptIndex,
				"records exist but the vector graph is missing; re-index the corpus", nil)
		}
		l.graph = graph
		return nil
	}
	if err != nil {
		return errors.New(errors.ErrCodeFileRead, "failed to open vector graph", err)
	}
	defer func() { _ = file.Close() }()

	// Import requires an io.ByteReader.
	if err := graph.Import(bufio.NewReader(file)); err != nil {
		return errors.New(errors.ErrCodeCorruptIndex, "failed to import vector graph", err)
	}

	l.graph = graph
	return nil
}

// Insert adds or replaces vectors and their metadata. Replaced graph
// nodes are lazily orphaned rather than deleted.
func (l *LocalIndex) Insert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errors.SearchError("index is closed", nil)
	}

	for _, e := range entries {
		if e.ID == "" {
			return errors.ValidationError("vector entry has no ID", nil)
		}
		if l.config.Dimensions == 0 {
			l.config.Dimensions = len(e.Vector)
		}
		if len(e.Vector) != l.config.Dimensions {
			return errors.New(errors.ErrCodeDimensionMismatch,
				fmt.Sprintf("expected %d dimensions, got %d", l.config.Dimensions, len(e.Vector)), nil)
		}
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New(errors.ErrCodeRecordWrite, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Graph and ID map changes are staged until the records commit, so a
	// failed batch leaves the in-memory state matching the database.
	type staged struct {
		id  string
		key uint64
		vec []float32
	}
	pending := make([]staged, 0, len(entries))
	nextKey := l.nextKey

	for _, e := range entries {
		key := nextKey
		nextKey++

		_, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (chunk_id, vec_key, service_name, document_type, source_file,
				title, section, content_preview, content_length, token_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(chunk_id) DO UPDATE SET
				vec_key = excluded.vec_key,
				service_name = excluded.service_name,
				document_type = excluded.document_type,
				source_file = excluded.source_file,
				title = excluded.title,
				section = excluded.section,
				content_preview = excluded.content_preview,
				content_length = excluded.content_length,
				token_count = excluded.token_count,
				created_at = excluded.created_at`,
			e.ID, key, e.Metadata.ServiceName, e.Metadata.DocumentType, e.Metadata.SourceFile,
			e.Metadata.Title, e.Metadata.Section, e.Metadata.ContentPreview,
			e.Metadata.ContentLength, e.Metadata.TokenCount, e.Metadata.Timestamp)
		if err != nil {
			return errors.New(errors.ErrCodeRecordWrite, "failed to write chunk record", err)
		}

		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		normalizeInPlace(vec)
		pending = append(pending, staged{id: e.ID, key: key, vec: vec})
	}

	if err := tx.Commit(); err != nil {
		return errors.New(errors.ErrCodeRecordWrite, "failed to commit chunk records", err)
	}

	for _, s := range pending {
		if existing, ok := l.idMap[s.id]; ok {
			delete(l.keyMap, existing)
		}
		l.graph.Add(hnsw.MakeNode(s.key, s.vec))
		l.idMap[s.id] = s.key
		l.keyMap[s.key] = s.id
	}
	l.nextKey = nextKey

	l.dirty = true
	return nil
}

// Query returns nearest neighbors by cosine similarity. With a service
// filter the graph is over-fetched and filtered against stored metadata.
func (l *LocalIndex) Query(ctx context.Context, query []float32, opts QueryOptions) ([]SearchResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, errors.SearchError("index is closed", nil)
	}
	if len(query) == 0 {
		return nil, errors.ValidationError("query vector is empty", nil)
	}
	if l.config.Dimensions != 0 && len(query) != l.config.Dimensions {
		return nil, errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("expected %d dimensions, got %d", l.config.Dimensions, len(query)), nil)
	}
	opts = opts.withDefaults()

	if l.graph.Len() == 0 {
		return []SearchResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	fetch := opts.TopK
	if opts.ServiceFilter != "" {
		fetch = opts.TopK * 4
	}

	nodes := l.graph.Search(normalized, fetch)

	results := make([]SearchResult, 0, opts.TopK)
	for _, node := range nodes {
		id, ok := l.keyMap[node.Key]
		if !ok {
			// Orphan from a lazy replace.
			continue
		}

		meta, err := l.loadMetadata(ctx, id)
		if err != nil {
			return nil, err
		}
		if opts.ServiceFilter != "" && meta.ServiceName != opts.ServiceFilter {
			continue
		}

		distance := l.graph.Distance(normalized, node.Value)
		result := SearchResult{
			ID:         id,
			Distance:   distance,
			Similarity: similarityFromDistance(distance),
		}
		if opts.ReturnMetadata {
			result.Metadata = meta
		}

		results = append(results, result)
		if len(results) == opts.TopK {
			break
		}
	}

	return results, nil
}

func (l *LocalIndex) loadMetadata(ctx context.Context, id string) (Metadata, error) {
	var m Metadata
	err := l.db.QueryRowContext(ctx, `
		SELECT service_name, document_type, source_file, title, section,
			content_preview, content_length, token_count, created_at
		FROM chunks WHERE chunk_id = ?`, id).
		Scan(&m.ServiceName, &m.DocumentType, &m.SourceFile, &m.Title, &m.Section,
			&m.ContentPreview, &m.ContentLength, &m.TokenCount, &m.Timestamp)
	if err == sql.ErrNoRows {
		return Metadata{}, nil
	}
	if err != nil {
		return Metadata{}, errors.New(errors.ErrCodeCorruptIndex, "failed to load chunk metadata", err)
	}
	return m, nil
}

// Count returns the number of live vectors.
func (l *LocalIndex) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return 0
	}
	return len(l.idMap)
}

// Save persists the graph atomically (temp file + rename). Records are
// already durable through SQLite.
func (l *LocalIndex) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.SearchError("index is closed", nil)
	}
	return l.saveGraphLocked()
}

func (l *LocalIndex) saveGraphLocked() error {
	if !l.dirty {
		return nil
	}

	path := filepath.Join(l.config.Dir, graphFile)
	tmp := path + ".tmp"

	file, err := os.Create(tmp)
	if err != nil {
		return errors.New(errors.ErrCodeRecordWrite, "failed to create graph file", err)
	}
	if err := l.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return errors.New(errors.ErrCodeRecordWrite, "failed to export graph", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.New(errors.ErrCodeRecordWrite, "failed to close graph file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.New(errors.ErrCodeRecordWrite, "failed to replace graph file", err)
	}

	l.dirty = false
	return nil
}

// Close saves pending graph changes, closes the records database and
// releases the directory lock.
func (l *LocalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	saveErr := l.saveGraphLocked()

	l.closed = true
	l.graph = nil

	dbErr := l.db.Close()
	unlockErr := l.lock.Unlock()

	if saveErr != nil {
		return saveErr
	}
	if dbErr != nil {
		return errors.New(errors.ErrCodeRecordWrite, "failed to close records database", dbErr)
	}
	if unlockErr != nil {
		return errors.New(errors.ErrCodeIndexLocked, "failed to release index lock", unlockErr)
	}
	return nil
}
