// Package vectorstore persists dense embeddings and serves
// cosine-similarity k-NN over them. It shares the symbol store's SQLite
// database file (the "vectors" and "symbol_id_map" tables live
// alongside "symbols"/"relationships") so symbol-id allocation and
// vector insertion commit in one transaction, per spec.md §4.6.
package vectorstore

import (
	"database/sql"
	"math"
	"sort"
	"strings"

	"github.com/anortham/miller/internal/merrors"
	"github.com/anortham/miller/internal/types"
)

// VectorStore is the vector index. It keeps a small in-memory cache of
// every stored vector for k-NN scanning — the same way the symbol
// store's companion text-search engine keeps its tokenized index in
// memory rather than re-querying SQLite per term.
type VectorStore struct {
	db *sql.DB

	cache map[string][]float32 // symbol_id -> vector, rebuilt from DB on open
}

// Open attaches a VectorStore to db (the same *sql.DB the symbol store
// opened) and ensures its tables exist.
func Open(db *sql.DB) (*VectorStore, error) {
	if _, err := db.Exec(schemaDDL); err != nil {
		return nil, merrors.New(merrors.VectorStoreError, "vectorstore.Open", err)
	}
	vs := &VectorStore{db: db, cache: make(map[string][]float32)}
	if err := vs.loadCache(); err != nil {
		return nil, err
	}
	return vs, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS symbol_id_map (
    int_id     INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol_id  TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS vectors (
    int_id  INTEGER PRIMARY KEY REFERENCES symbol_id_map(int_id) ON DELETE CASCADE,
    vector  BLOB NOT NULL
);
`

func (vs *VectorStore) loadCache() error {
	rows, err := vs.db.Query(
		`SELECT m.symbol_id, v.vector FROM vectors v JOIN symbol_id_map m ON m.int_id = v.int_id`)
	if err != nil {
		return merrors.New(merrors.VectorStoreError, "vectorstore.loadCache", err)
	}
	defer rows.Close()
	for rows.Next() {
		var symbolID string
		var blob []byte
		if err := rows.Scan(&symbolID, &blob); err != nil {
			return merrors.New(merrors.VectorStoreError, "vectorstore.loadCache.scan", err)
		}
		vs.cache[symbolID] = decodeVector(blob)
	}
	return rows.Err()
}

// Store persists embedding under symbolID, idempotently: if a mapping
// already exists its integer slot is reused and the vector replaced;
// otherwise a new slot is allocated sequentially (AUTOINCREMENT, never a
// hash of symbolID) and the mapping/vector are inserted in one
// transaction.
func (vs *VectorStore) Store(symbolID string, embedding []float32) error {
	tx, err := vs.db.Begin()
	if err != nil {
		return merrors.New(merrors.VectorStoreError, "Store", err)
	}
	defer tx.Rollback()

	if err := storeOne(tx, symbolID, embedding); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return merrors.New(merrors.VectorStoreError, "Store.commit", err)
	}
	vs.cache[symbolID] = embedding
	return nil
}

func storeOne(tx *sql.Tx, symbolID string, embedding []float32) error {
	var intID int64
	err := tx.QueryRow(`SELECT int_id FROM symbol_id_map WHERE symbol_id = ?`, symbolID).Scan(&intID)
	switch {
	case err == sql.ErrNoRows:
		res, insErr := tx.Exec(`INSERT INTO symbol_id_map (symbol_id) VALUES (?)`, symbolID)
		if insErr != nil {
			return merrors.New(merrors.VectorStoreError, "storeOne.allocateSlot", insErr).WithFile(symbolID)
		}
		intID, _ = res.LastInsertId()
	case err != nil:
		return merrors.New(merrors.VectorStoreError, "storeOne.lookupSlot", err).WithFile(symbolID)
	}

	if _, err := tx.Exec(
		`INSERT INTO vectors (int_id, vector) VALUES (?, ?)
		 ON CONFLICT(int_id) DO UPDATE SET vector = excluded.vector`,
		intID, encodeVector(embedding),
	); err != nil {
		return merrors.New(merrors.VectorStoreError, "storeOne.insertVector", err).WithFile(symbolID)
	}
	return nil
}

// Batch is one (symbol_id, embedding) pair for StoreBatch.
type Batch struct {
	SymbolID  string
	Embedding []float32
}

// StoreBatch groups inserts into a single transaction and refreshes the
// in-memory cache only once, after the whole batch commits.
func (vs *VectorStore) StoreBatch(items []Batch) error {
	tx, err := vs.db.Begin()
	if err != nil {
		return merrors.New(merrors.VectorStoreError, "StoreBatch", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		if err := storeOne(tx, item.SymbolID, item.Embedding); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return merrors.New(merrors.VectorStoreError, "StoreBatch.commit", err)
	}
	for _, item := range items {
		vs.cache[item.SymbolID] = item.Embedding
	}
	return nil
}

// SearchHit is one k-NN result.
type SearchHit struct {
	SymbolID   string
	Distance   float64
	Confidence float64
}

// Search returns up to k results with cosine similarity >= threshold,
// confidence = max(0, 1 - distance).
func (vs *VectorStore) Search(queryVector []float32, k int, threshold float64) []SearchHit {
	var hits []SearchHit
	for symbolID, vec := range vs.cache {
		sim := cosineSimilarity(queryVector, vec)
		distance := 1 - sim
		confidence := math.Max(0, 1-distance)
		if confidence < threshold {
			continue
		}
		hits = append(hits, SearchHit{SymbolID: symbolID, Distance: distance, Confidence: confidence})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Confidence > hits[j].Confidence })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Remove drops the vectors and id mappings for symbolIDs — called when a
// file is deleted, so orphaned vectors don't linger in k-NN scans or
// total_embeddings counts. Re-indexing a file does not call it.
func (vs *VectorStore) Remove(symbolIDs []string) error {
	if len(symbolIDs) == 0 {
		return nil
	}
	tx, err := vs.db.Begin()
	if err != nil {
		return merrors.New(merrors.VectorStoreError, "Remove", err)
	}
	defer tx.Rollback()

	for _, id := range symbolIDs {
		if _, err := tx.Exec(`DELETE FROM symbol_id_map WHERE symbol_id = ?`, id); err != nil {
			return merrors.New(merrors.VectorStoreError, "Remove.delete", err).WithFile(id)
		}
	}
	if err := tx.Commit(); err != nil {
		return merrors.New(merrors.VectorStoreError, "Remove.commit", err)
	}
	for _, id := range symbolIDs {
		delete(vs.cache, id)
	}
	return nil
}

// Clear drops every stored vector and mapping.
func (vs *VectorStore) Clear() error {
	if _, err := vs.db.Exec(`DELETE FROM vectors`); err != nil {
		return merrors.New(merrors.VectorStoreError, "Clear", err)
	}
	if _, err := vs.db.Exec(`DELETE FROM symbol_id_map`); err != nil {
		return merrors.New(merrors.VectorStoreError, "Clear", err)
	}
	vs.cache = make(map[string][]float32)
	return nil
}

// Stats reports total_vectors and index_path (empty here — the index
// lives inside the shared SQLite file, not a standalone path).
type Stats struct {
	TotalVectors int
	IndexPath    string
}

func (vs *VectorStore) Stats() Stats {
	return Stats{TotalVectors: len(vs.cache)}
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func encodeVector(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		out[i*4] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

func decodeVector(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		bits := uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// ClassifyLayer maps a file path to one of the architectural layers by
// first-match-wins substring matching of path-segment patterns such as
// "api/" (so "metadata/" also matches "data/"), per spec.md §4.6.
func ClassifyLayer(path string) types.Layer {
	lower := strings.ToLower(path)
	switch {
	case containsAny(lower, "controllers/", "routes/", "api/"):
		return types.LayerAPI
	case containsAny(lower, "entities/", "domain/", "services/"):
		return types.LayerDomain
	case containsAny(lower, "migrations/") || strings.HasSuffix(lower, ".sql"):
		return types.LayerDatabase
	case containsAny(lower, "components/", "views/", "ui/", "types/"):
		return types.LayerFrontend
	case containsAny(lower, "repositories/", "data/", "db/"):
		return types.LayerData
	default:
		return types.LayerInfrastructure
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// symbolFileLookup is the minimal store contract FindCrossLayerEntity
// joins against for file paths — declared here rather than importing
// internal/store, so the vector store has no dependency on the storage
// layer's concrete type (the same pattern internal/search's symbolSource
// uses).
type symbolFileLookup interface {
	GetSymbol(id string) (*types.Symbol, error)
}

// CrossLayerSymbol is one joined, layer-classified hit in a
// CrossLayerEntity — the `{symbol_id, file, layer, confidence,
// distance}` shape from spec.md §4.8.
type CrossLayerSymbol struct {
	SymbolID   string
	File       string
	Layer      types.Layer
	Confidence float64
	Distance   float64
}

// CrossLayerEntity is find_cross_layer_entity's result: `{entity_name,
// symbols, total_confidence}` from spec.md §4.8.
type CrossLayerEntity struct {
	EntityName      string
	Symbols         []CrossLayerSymbol
	TotalConfidence float64
}

// crossLayerThreshold is the "permissive threshold (e.g. 0.9)" spec.md
// §4.8 names for this operation's k-NN search, read as a maximum cosine
// distance: FindCrossLayerEntity keeps hits with similarity >= 1-0.9 =
// 0.1, looser than a typical semantic_search call, since the goal here is
// breadth across layers rather than precision on one.
const crossLayerThreshold = 0.9

// FindCrossLayerEntity runs the permissive-threshold k-NN search spec.md
// §4.8 specifies, joins each hit against lookup for its file path,
// classifies it by architectural layer, and averages confidences into
// total_confidence. Hits whose symbol name doesn't relate to entityName
// are discarded before grouping — the k-NN pass alone would return any
// semantically adjacent symbol, but the operation traces one named
// entity across layers, not a generic semantic neighborhood.
func (vs *VectorStore) FindCrossLayerEntity(entityName string, queryVector []float32, k int, lookup symbolFileLookup) (*CrossLayerEntity, error) {
	hits := vs.Search(queryVector, k, 1-crossLayerThreshold)

	entity := &CrossLayerEntity{EntityName: entityName}
	var confidenceSum float64
	for _, hit := range hits {
		sym, err := lookup.GetSymbol(hit.SymbolID)
		if err != nil {
			return nil, merrors.New(merrors.VectorStoreError, "FindCrossLayerEntity", err).WithFile(hit.SymbolID)
		}
		if sym == nil || !relatesToEntity(sym.Name, entityName) {
			continue
		}
		entity.Symbols = append(entity.Symbols, CrossLayerSymbol{
			SymbolID:   hit.SymbolID,
			File:       sym.FilePath,
			Layer:      ClassifyLayer(sym.FilePath),
			Confidence: hit.Confidence,
			Distance:   hit.Distance,
		})
		confidenceSum += hit.Confidence
	}
	if len(entity.Symbols) > 0 {
		entity.TotalConfidence = confidenceSum / float64(len(entity.Symbols))
	}
	return entity, nil
}

func relatesToEntity(symbolName, entityName string) bool {
	if entityName == "" {
		return true
	}
	return strings.Contains(strings.ToLower(symbolName), strings.ToLower(entityName))
}
