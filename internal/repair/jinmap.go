// jinmap.go adapts the teacher's embedded-SQLite caching pattern
// (internal/turso/db) to a disposable (layer, path) -> blob-hash index.
// It is never authoritative: the object store and staging index remain
// the source of truth, and Run rebuilds this file from scratch whenever
// it is missing or its row count disagrees with what the committed layer
// trees actually contain.
package repair

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/objstore"
	"github.com/dabstractor/jin/internal/project"
)

// RelPath is the control-directory-relative location of the cache file.
const RelPath = "jinmap.db"

// JinMap wraps the embedded SQLite connection backing the optional
// auxiliary index.
type JinMap struct {
	conn *sql.DB
}

// OpenJinMap opens (creating if absent) the cache at jinDir/jinmap.db.
func OpenJinMap(jinDir string) (*JinMap, error) {
	path := filepath.Join(jinDir, RelPath)
	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("%w: open jinmap: %v", jinerr.ErrIO, err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: ping jinmap: %v", jinerr.ErrIO, err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: enable WAL on jinmap: %v", jinerr.ErrIO, err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: set busy_timeout on jinmap: %v", jinerr.ErrIO, err)
	}

	m := &JinMap{conn: conn}
	if err := m.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return m, nil
}

func (m *JinMap) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS entries (
		layer TEXT NOT NULL,
		path  TEXT NOT NULL,
		hash  TEXT NOT NULL,
		PRIMARY KEY (layer, path)
	);
	`
	if _, err := m.conn.Exec(schema); err != nil {
		return fmt.Errorf("%w: init jinmap schema: %v", jinerr.ErrIO, err)
	}
	return nil
}

// Close closes the underlying connection.
func (m *JinMap) Close() error {
	if m.conn == nil {
		return nil
	}
	_, _ = m.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	err := m.conn.Close()
	m.conn = nil
	return err
}

// Count returns how many rows are currently cached.
func (m *JinMap) Count() (int, error) {
	var n int
	if err := m.conn.QueryRow("SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count jinmap entries: %v", jinerr.ErrIO, err)
	}
	return n, nil
}

// Lookup returns the cached hash for (layerName, path), if present.
func (m *JinMap) Lookup(layerName, path string) (hash string, ok bool, err error) {
	row := m.conn.QueryRow("SELECT hash FROM entries WHERE layer = ? AND path = ?", layerName, path)
	if err := row.Scan(&hash); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: lookup jinmap entry: %v", jinerr.ErrIO, err)
	}
	return hash, true, nil
}

// Rebuild truncates the cache and repopulates it by walking every existing
// layer ref's committed tree via the object store, the only authoritative
// source.
func Rebuild(store objstore.Store, ctx project.Context, m *JinMap) (int, error) {
	tx, err := m.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: begin jinmap rebuild: %v", jinerr.ErrIO, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM entries"); err != nil {
		return 0, fmt.Errorf("%w: clear jinmap: %v", jinerr.ErrIO, err)
	}

	existing, err := layer.ListExisting(store)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO entries (layer, path, hash) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("%w: prepare jinmap insert: %v", jinerr.ErrIO, err)
	}
	defer stmt.Close()

	count := 0
	for _, ref := range existing {
		tip, ok, err := store.ReadRef(ref.Path)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		treeHash, err := store.ReadCommitTree(tip)
		if err != nil {
			return 0, err
		}
		flat := map[string]objstore.TreeEntry{}
		if err := flattenTree(store, treeHash, "", flat); err != nil {
			return 0, err
		}
		for path, e := range flat {
			if _, err := stmt.Exec(ref.Kind.String(), path, e.Hash.String()); err != nil {
				return 0, fmt.Errorf("%w: insert jinmap entry: %v", jinerr.ErrIO, err)
			}
			count++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit jinmap rebuild: %v", jinerr.ErrIO, err)
	}
	return count, nil
}

func flattenTree(store objstore.Store, tree plumbing.Hash, prefix string, flat map[string]objstore.TreeEntry) error {
	entries, err := store.ReadTree(tree)
	if err != nil {
		return fmt.Errorf("%w: flatten tree: %v", jinerr.ErrObjectStore, err)
	}
	for _, e := range entries {
		path := e.Name
		if prefix != "" {
			path = prefix + "/" + e.Name
		}
		if e.IsDir() {
			if err := flattenTree(store, e.Hash, path, flat); err != nil {
				return err
			}
			continue
		}
		flat[path] = e
	}
	return nil
}
