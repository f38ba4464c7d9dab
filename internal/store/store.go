// Package store is the relational symbol store: a SQLite-backed record
// of every file, symbol, and relationship a workspace has been indexed
// into. Grounded on the pure-Go modernc.org/sqlite driver (the same one
// josephgoksu-TaskWing's internal/memory package opens with
// sql.Open("sqlite", path)) so the module never needs a second cgo
// dependency alongside go-tree-sitter's own cgo bindings.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anortham/miller/internal/merrors"
	"github.com/anortham/miller/internal/types"
)

// Store is the symbol store's data access layer.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at dbPath with
// foreign keys and WAL mode enabled, and applies the schema.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, merrors.New(merrors.IOError, "store.Open", err).WithFile(dbPath)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)")
	if err != nil {
		return nil, merrors.New(merrors.StoreError, "store.Open", err).WithFile(dbPath)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, merrors.New(merrors.StoreError, "store.Open", err).WithFile(dbPath)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for callers that need a transaction
// spanning more than one store operation (e.g. the vector store sharing
// this same database file for its symbol_id <-> vector_slot mapping).
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return merrors.New(merrors.StoreError, "store.migrate", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
    path          TEXT PRIMARY KEY,
    language      TEXT NOT NULL,
    content_hash  TEXT NOT NULL,
    size_bytes    INTEGER NOT NULL DEFAULT 0,
    last_indexed  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS symbols (
    id            TEXT PRIMARY KEY,
    file_path     TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
    name          TEXT NOT NULL,
    kind          TEXT NOT NULL,
    language      TEXT NOT NULL,
    visibility    TEXT NOT NULL,
    parent_id     TEXT REFERENCES symbols(id),
    start_line    INTEGER NOT NULL,
    start_column  INTEGER NOT NULL,
    end_line      INTEGER NOT NULL,
    end_column    INTEGER NOT NULL,
    start_byte    INTEGER NOT NULL,
    end_byte      INTEGER NOT NULL,
    signature     TEXT,
    doc_comment   TEXT,
    metadata_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_symbols_file_path ON symbols(file_path);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
CREATE INDEX IF NOT EXISTS idx_symbols_parent_id ON symbols(parent_id);

CREATE TABLE IF NOT EXISTS relationships (
    id             TEXT PRIMARY KEY,
    from_symbol_id TEXT NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
    to_symbol_id   TEXT NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
    kind           TEXT NOT NULL,
    file_path      TEXT NOT NULL,
    start_line     INTEGER NOT NULL,
    start_column   INTEGER NOT NULL,
    end_line       INTEGER NOT NULL,
    end_column     INTEGER NOT NULL,
    start_byte     INTEGER NOT NULL,
    end_byte       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_symbol_id);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_symbol_id);
CREATE INDEX IF NOT EXISTS idx_relationships_file_path ON relationships(file_path);

CREATE TABLE IF NOT EXISTS vocabulary_terms (
    term  TEXT PRIMARY KEY,
    idf   REAL NOT NULL,
    df    INTEGER NOT NULL
);
`

// UpsertFile records path's content hash and language, inserting or
// replacing its row.
func (s *Store) UpsertFile(f types.File) error {
	_, err := s.db.Exec(
		`INSERT INTO files (path, language, content_hash, size_bytes, last_indexed)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		     language=excluded.language,
		     content_hash=excluded.content_hash,
		     size_bytes=excluded.size_bytes,
		     last_indexed=excluded.last_indexed`,
		f.Path, f.Language, f.ContentHash, f.SizeBytes, time.Now().UTC(),
	)
	if err != nil {
		return merrors.New(merrors.StoreError, "UpsertFile", err).WithFile(f.Path)
	}
	return nil
}

// GetFileHash returns the stored content hash for path, or "" if path
// has never been indexed — the delta-index skip check.
func (s *Store) GetFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT content_hash FROM files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", merrors.New(merrors.StoreError, "GetFileHash", err).WithFile(path)
	}
	return hash, nil
}

// ReplaceFileSymbols atomically replaces every symbol and relationship
// belonging to path with symbols and rels, in a single transaction —
// the data model's "replace, never merge" contract for re-indexing a
// changed file. On any failure the transaction rolls back and the
// store's prior state for path is left untouched.
func (s *Store) ReplaceFileSymbols(f types.File, symbols []types.Symbol, rels []types.Relationship) error {
	tx, err := s.db.Begin()
	if err != nil {
		return merrors.New(merrors.StoreError, "ReplaceFileSymbols", err).WithFile(f.Path)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM relationships WHERE file_path = ?`, f.Path); err != nil {
		return merrors.New(merrors.StoreError, "ReplaceFileSymbols.deleteRelationships", err).WithFile(f.Path)
	}
	if _, err := tx.Exec(`DELETE FROM symbols WHERE file_path = ?`, f.Path); err != nil {
		return merrors.New(merrors.StoreError, "ReplaceFileSymbols.deleteSymbols", err).WithFile(f.Path)
	}
	if _, err := tx.Exec(
		`INSERT INTO files (path, language, content_hash, size_bytes, last_indexed)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		     language=excluded.language,
		     content_hash=excluded.content_hash,
		     size_bytes=excluded.size_bytes,
		     last_indexed=excluded.last_indexed`,
		f.Path, f.Language, f.ContentHash, f.SizeBytes, time.Now().UTC(),
	); err != nil {
		return merrors.New(merrors.StoreError, "ReplaceFileSymbols.upsertFile", err).WithFile(f.Path)
	}

	// Symbols must be inserted before relationships so the relationships'
	// foreign keys resolve, and a parent must be inserted before any
	// child references it by parent_id.
	for _, sym := range orderByParentDepth(symbols) {
		if err := insertSymbol(tx, sym); err != nil {
			return err
		}
	}
	for _, rel := range rels {
		if err := insertRelationship(tx, rel); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return merrors.New(merrors.StoreError, "ReplaceFileSymbols.commit", err).WithFile(f.Path)
	}
	return nil
}

// orderByParentDepth returns syms ordered so that a symbol with no
// parent_id (or one whose parent doesn't appear in this batch) sorts
// before any symbol that names it as a parent — SQLite enforces the
// parent_id foreign key at insert time, not at commit.
func orderByParentDepth(syms []types.Symbol) []types.Symbol {
	byID := make(map[string]types.Symbol, len(syms))
	for _, s := range syms {
		byID[s.ID] = s
	}
	depth := func(s types.Symbol) int {
		d := 0
		cur := s
		seen := map[string]bool{}
		for cur.ParentID != "" && !seen[cur.ID] {
			seen[cur.ID] = true
			parent, ok := byID[cur.ParentID]
			if !ok {
				break
			}
			d++
			cur = parent
		}
		return d
	}
	out := make([]types.Symbol, len(syms))
	copy(out, syms)
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && depth(out[j-1]) > depth(out[j]) {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}

func insertSymbol(tx *sql.Tx, sym types.Symbol) error {
	var parentID interface{}
	if sym.ParentID != "" {
		parentID = sym.ParentID
	}
	_, err := tx.Exec(
		`INSERT INTO symbols (id, file_path, name, kind, language, visibility, parent_id,
		     start_line, start_column, end_line, end_column, start_byte, end_byte,
		     signature, doc_comment, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.ID, sym.FilePath, sym.Name, string(sym.Kind), sym.Language, string(sym.Visibility), parentID,
		sym.Position.StartLine, sym.Position.StartColumn, sym.Position.EndLine, sym.Position.EndColumn,
		sym.Position.StartByte, sym.Position.EndByte,
		sym.Signature, sym.DocComment, encodeMetadata(sym.Metadata),
	)
	if err != nil {
		return merrors.New(merrors.StoreError, "insertSymbol", err).WithFile(sym.FilePath)
	}
	return nil
}

func insertRelationship(tx *sql.Tx, rel types.Relationship) error {
	_, err := tx.Exec(
		`INSERT INTO relationships (id, from_symbol_id, to_symbol_id, kind, file_path,
		     start_line, start_column, end_line, end_column, start_byte, end_byte)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rel.ID, rel.FromSymbolID, rel.ToSymbolID, string(rel.Kind), rel.FilePath,
		rel.Position.StartLine, rel.Position.StartColumn, rel.Position.EndLine, rel.Position.EndColumn,
		rel.Position.StartByte, rel.Position.EndByte,
	)
	if err != nil {
		return merrors.New(merrors.StoreError, "insertRelationship", err).WithFile(rel.FilePath)
	}
	return nil
}

// DeleteFile removes a file and, via ON DELETE CASCADE, every symbol and
// relationship that belonged to it.
func (s *Store) DeleteFile(path string) error {
	if _, err := s.db.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return merrors.New(merrors.StoreError, "DeleteFile", err).WithFile(path)
	}
	return nil
}

// GetSymbol returns the symbol with id, or nil if none exists.
func (s *Store) GetSymbol(id string) (*types.Symbol, error) {
	row := s.db.QueryRow(symbolSelectColumns+` FROM symbols WHERE id = ?`, id)
	sym, err := scanSymbol(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, merrors.New(merrors.StoreError, "GetSymbol", err)
	}
	return sym, nil
}

// FindSymbolsOptions narrows a FindSymbols query.
type FindSymbolsOptions struct {
	Name     string
	FilePath string
	Kinds    []types.SymbolKind
	Limit    int
}

// FindSymbols returns symbols matching opts, ordered by file path then
// start byte.
func (s *Store) FindSymbols(opts FindSymbolsOptions) ([]types.Symbol, error) {
	query := symbolSelectColumns + ` FROM symbols WHERE 1=1`
	var args []interface{}
	if opts.Name != "" {
		query += ` AND name = ?`
		args = append(args, opts.Name)
	}
	if opts.FilePath != "" {
		query += ` AND file_path = ?`
		args = append(args, opts.FilePath)
	}
	if len(opts.Kinds) > 0 {
		query += ` AND kind IN (` + placeholders(len(opts.Kinds)) + `)`
		for _, k := range opts.Kinds {
			args = append(args, string(k))
		}
	}
	query += ` ORDER BY file_path, start_byte`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, merrors.New(merrors.StoreError, "FindSymbols", err)
	}
	defer rows.Close()

	var out []types.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, merrors.New(merrors.StoreError, "FindSymbols.scan", err)
		}
		out = append(out, *sym)
	}
	return out, rows.Err()
}

// IterAllSymbols calls fn once per symbol in the store, in file-path
// order, stopping at the first error fn returns.
func (s *Store) IterAllSymbols(fn func(types.Symbol) error) error {
	rows, err := s.db.Query(symbolSelectColumns + ` FROM symbols ORDER BY file_path, start_byte`)
	if err != nil {
		return merrors.New(merrors.StoreError, "IterAllSymbols", err)
	}
	defer rows.Close()

	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return merrors.New(merrors.StoreError, "IterAllSymbols.scan", err)
		}
		if err := fn(*sym); err != nil {
			return err
		}
	}
	return rows.Err()
}

// GetRelationships returns every relationship touching symbolID, in
// either direction.
func (s *Store) GetRelationships(symbolID string) ([]types.Relationship, error) {
	rows, err := s.db.Query(
		`SELECT id, from_symbol_id, to_symbol_id, kind, file_path, start_line, start_column, end_line, end_column, start_byte, end_byte
		 FROM relationships WHERE from_symbol_id = ? OR to_symbol_id = ?`,
		symbolID, symbolID,
	)
	if err != nil {
		return nil, merrors.New(merrors.StoreError, "GetRelationships", err)
	}
	defer rows.Close()

	var out []types.Relationship
	for rows.Next() {
		var r types.Relationship
		var kind string
		if err := rows.Scan(&r.ID, &r.FromSymbolID, &r.ToSymbolID, &kind, &r.FilePath,
			&r.Position.StartLine, &r.Position.StartColumn, &r.Position.EndLine, &r.Position.EndColumn,
			&r.Position.StartByte, &r.Position.EndByte); err != nil {
			return nil, merrors.New(merrors.StoreError, "GetRelationships.scan", err)
		}
		r.Kind = types.RelationshipKind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats reports the workspace-wide aggregate counters that
// get_workspace_stats surfaces to the public API.
type Stats struct {
	TotalFiles   int
	TotalSymbols int
	Languages    map[string]int
}

// Stats computes the current file/symbol/language counters. It is a
// handful of aggregate queries rather than a running counter so it
// always reflects committed state, including after a crash-recovered
// restart.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&st.TotalFiles); err != nil {
		return st, merrors.New(merrors.StoreError, "Stats.files", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM symbols`).Scan(&st.TotalSymbols); err != nil {
		return st, merrors.New(merrors.StoreError, "Stats.symbols", err)
	}

	rows, err := s.db.Query(`SELECT language, COUNT(*) FROM files GROUP BY language`)
	if err != nil {
		return st, merrors.New(merrors.StoreError, "Stats.languages", err)
	}
	defer rows.Close()
	st.Languages = make(map[string]int)
	for rows.Next() {
		var lang string
		var count int
		if err := rows.Scan(&lang, &count); err != nil {
			return st, merrors.New(merrors.StoreError, "Stats.languages.scan", err)
		}
		st.Languages[lang] = count
	}
	return st, rows.Err()
}

const symbolSelectColumns = `SELECT id, file_path, name, kind, language, visibility, parent_id,
	     start_line, start_column, end_line, end_column, start_byte, end_byte,
	     signature, doc_comment, metadata_json`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSymbol(row scanner) (*types.Symbol, error) {
	var sym types.Symbol
	var kind, visibility string
	var parentID, signature, doc, metadataJSON sql.NullString
	if err := row.Scan(&sym.ID, &sym.FilePath, &sym.Name, &kind, &sym.Language, &visibility, &parentID,
		&sym.Position.StartLine, &sym.Position.StartColumn, &sym.Position.EndLine, &sym.Position.EndColumn,
		&sym.Position.StartByte, &sym.Position.EndByte,
		&signature, &doc, &metadataJSON); err != nil {
		return nil, err
	}
	sym.Kind = types.SymbolKind(kind)
	sym.Visibility = types.Visibility(visibility)
	sym.ParentID = parentID.String
	sym.Signature = signature.String
	sym.DocComment = doc.String
	sym.Metadata = decodeMetadata(metadataJSON.String)
	return &sym, nil
}

func placeholders(n int) string {
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

func encodeMetadata(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	out := ""
	first := true
	for k, v := range m {
		if !first {
			out += "\x1f"
		}
		first = false
		out += k + "\x1e" + v
	}
	return out
}

func decodeMetadata(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range splitOn(raw, '\x1f') {
		kv := splitOn(pair, '\x1e')
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
		}
	}
	return out
}

func splitOn(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
