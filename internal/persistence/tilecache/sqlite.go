// Package tilecache persists encoded tile payloads in sqlite so the server
// does not regenerate content it has already produced. Writes go through a
// background writer; reads are synchronous.
package tilecache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

type Cache struct {
	db *sql.DB

	ch   chan putReq
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type putReq struct {
	contentID string
	payload   []byte
}

func Open(path string) (*Cache, error) {
	if path == "" {
		return nil, fmt.Errorf("empty cache path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	c := &Cache{
		db: db,
		ch: make(chan putReq, 4096),
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop()
	}()
	return c, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the write-behind pattern; the cache is rebuildable, so
	// NORMAL durability is enough.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tiles (
			content_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			size INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tiles_created ON tiles(created_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) loop() {
	for req := range c.ch {
		_, err := c.db.Exec(
			`INSERT INTO tiles (content_id, payload, size, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(content_id) DO NOTHING;`,
			req.contentID, req.payload, len(req.payload), time.Now().UTC().Format(time.RFC3339Nano),
		)
		_ = err // cache writes are best-effort; the generator remains the source of truth
	}
}

// Get returns the cached payload, or ok=false on a miss.
func (c *Cache) Get(contentID string) ([]byte, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	var payload []byte
	err := c.db.QueryRow(`SELECT payload FROM tiles WHERE content_id = ?;`, contentID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// Put enqueues a payload for background insertion. Drops the write rather
// than stall the request path if the writer falls behind.
func (c *Cache) Put(contentID string, payload []byte) {
	if c == nil || c.closed.Load() {
		return
	}
	select {
	case c.ch <- putReq{contentID: contentID, payload: payload}:
	default:
	}
}

// Stats reports resident entry count and total payload bytes.
func (c *Cache) Stats() (entries int64, bytes int64, err error) {
	if c == nil {
		return 0, 0, nil
	}
	err = c.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM tiles;`).Scan(&entries, &bytes)
	return entries, bytes, err
}

func (c *Cache) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.ch)
		c.wg.Wait()
		err = c.db.Close()
	})
	return err
}
