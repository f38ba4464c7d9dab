// Package miller is the public API facade: the single entry point that
// wires the grammar registry, parser manager, extractor registry, symbol
// store, vector store, text search engine, embedder, and indexing
// coordinator into the operations named in spec.md §6 — initialize,
// index_workspace, index_file, shutdown, health_check, search_code,
// semantic_search, hybrid_search, get_workspace_stats. Whatever embeds
// this core (a CLI, an editor plugin, an MCP server) talks only to this
// package.
package miller

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/anortham/miller/internal/config"
	"github.com/anortham/miller/internal/embed"
	"github.com/anortham/miller/internal/hybrid"
	"github.com/anortham/miller/internal/indexing"
	"github.com/anortham/miller/internal/search"
	"github.com/anortham/miller/internal/store"
	"github.com/anortham/miller/internal/tokenize"
	"github.com/anortham/miller/internal/types"
	"github.com/anortham/miller/internal/vectorstore"
)

// SearchMode selects how hybrid_search combines its candidate sets.
type SearchMode string

const (
	ModeDefault    SearchMode = "default"
	ModeCrossLayer SearchMode = "cross-layer"
)

// Options narrows any of the three search operations, per spec.md §6's
// public API surface.
type Options struct {
	MaxResults        int
	IncludeStructural bool
	IncludeSemantic   bool
	SemanticThreshold float64
	Mode              SearchMode
	Language          string
	SymbolKinds       []types.SymbolKind
	FilePattern       string
}

// Result is the unified, front-end-facing hit shape every search
// operation returns.
type Result struct {
	Symbol       types.Symbol
	Score        float64
	SearchMethod string
}

// Miller owns every subsystem for one open workspace.
type Miller struct {
	cfg      *config.Config
	store    *store.Store
	vectors  *vectorstore.VectorStore
	embedder embed.Embedder
	coord    *indexing.Coordinator
}

// Initialize opens (or creates) the persisted state under
// cfg.WorkspacePath/.miller and wires every subsystem together. A
// non-nil error here is the "unrecoverable initialization failure" named
// in spec.md §6's exit-code convention.
func Initialize(cfg *config.Config) (*Miller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureStateDirs(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, err
	}
	vs, err := vectorstore.Open(st.DB())
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var embedder embed.Embedder
	if cfg.EnableSemanticSearch {
		tfidf := embed.NewTFIDF(tokenize.New())
		if err := tfidf.Initialize(cfg.EmbeddingModel); err != nil {
			_ = st.Close()
			return nil, err
		}
		embedder = tfidf
	}

	coord := indexing.New(cfg, st, vs, embedder)
	m := &Miller{cfg: cfg, store: st, vectors: vs, embedder: embedder, coord: coord}

	if cfg.EnableWatcher {
		if err := coord.EnableWatcher(cfg.WorkspacePath); err != nil {
			return m, err
		}
	}
	return m, nil
}

// IndexWorkspace walks cfg.WorkspacePath and indexes every changed file.
func (m *Miller) IndexWorkspace(ctx context.Context) error {
	return m.coord.IndexWorkspace(ctx, m.cfg.WorkspacePath)
}

// IndexFile re-indexes a single file. path may be absolute or relative
// to the workspace root.
func (m *Miller) IndexFile(ctx context.Context, path string) error {
	return m.coord.IndexFile(ctx, m.resolveWorkspacePath(path))
}

// Shutdown stops the watcher, flushes pending work, and closes every
// owned resource in the order spec.md §5 specifies.
func (m *Miller) Shutdown() error {
	return m.coord.Shutdown()
}

// HealthReport is health_check()'s return shape.
type HealthReport struct {
	ParsersLoaded []string
	ParsersFailed map[string]string
	StoreOK       bool
	VectorsOK     bool
	Diagnostics   []types.Diagnostic
}

// HealthCheck reports parser, store, and vector-store readiness plus
// any diagnostics accumulated since startup.
func (m *Miller) HealthCheck() HealthReport {
	loaded, failed := m.coord.Registry().Status()
	return HealthReport{
		ParsersLoaded: loaded,
		ParsersFailed: failed,
		StoreOK:       m.store.DB().Ping() == nil,
		VectorsOK:     true,
		Diagnostics:   m.coord.Diagnostics(),
	}
}

// SearchCode runs a structural (fuzzy/exact/type-scoped) query through
// the text search engine.
func (m *Miller) SearchCode(query string, opts Options) []Result {
	searchOpts := search.Options{
		Limit:       opts.MaxResults,
		Language:    opts.Language,
		SymbolKinds: opts.SymbolKinds,
		FilePattern: opts.FilePattern,
	}
	hits := m.coord.Engine().Fuzzy(query, searchOpts)
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{Symbol: h.Symbol, Score: h.Score, SearchMethod: "structural"}
	}
	return out
}

// SemanticSearch embeds query and runs cosine k-NN against the vector
// store, joining hits back against the symbol store for their full
// record.
func (m *Miller) SemanticSearch(query string, opts Options) ([]Result, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("miller: semantic search unavailable (EmbedderUnavailable)")
	}
	embedding, err := m.embedder.EmbedQuery(query)
	if err != nil {
		return nil, err
	}
	threshold := opts.SemanticThreshold
	if threshold <= 0 {
		threshold = float64(m.cfg.SemanticThreshold)
	}
	hits := m.vectors.Search(embedding.Vector, opts.MaxResults, threshold)

	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		sym, err := m.store.GetSymbol(h.SymbolID)
		if err != nil || sym == nil {
			continue
		}
		out = append(out, Result{Symbol: *sym, Score: h.Confidence, SearchMethod: "semantic"})
	}
	return out, nil
}

// HybridSearch merges structural and semantic candidates per the
// scoring rule in spec.md §4.7. When opts.Mode is cross-layer the
// semantic set is passed through hybrid.CrossLayerAugment, which leaves
// it as it is; the merged result is the same as in default mode.
func (m *Miller) HybridSearch(query string, opts Options) ([]Result, error) {
	var structural []hybrid.StructuralCandidate
	if opts.IncludeStructural || (!opts.IncludeStructural && !opts.IncludeSemantic) {
		for _, r := range m.SearchCode(query, opts) {
			structural = append(structural, hybrid.StructuralCandidate{Symbol: r.Symbol})
		}
	}

	var semantic []hybrid.SemanticCandidate
	if m.embedder != nil && (opts.IncludeSemantic || (!opts.IncludeStructural && !opts.IncludeSemantic)) {
		semResults, err := m.SemanticSearch(query, opts)
		if err != nil {
			semResults = nil
		}
		for _, r := range semResults {
			semantic = append(semantic, hybrid.SemanticCandidate{Symbol: r.Symbol, Confidence: r.Score})
		}
	}

	if opts.Mode == ModeCrossLayer {
		augmented := hybrid.CrossLayerAugment(semantic, vectorstore.ClassifyLayer)
		if augmented != nil {
			semantic = augmented
		}
	}

	merged := hybrid.Merge(query, structural, semantic, opts.MaxResults)
	out := make([]Result, len(merged))
	for i, r := range merged {
		out[i] = Result{Symbol: r.Symbol, Score: r.HybridScore, SearchMethod: string(r.SearchMethod)}
	}
	return out, nil
}

// FindCrossLayerEntity traces entityName across architectural layers —
// spec.md §4.8's find_cross_layer_entity(entity_name, query_vector, k).
// The query vector is the embedder's own encoding of entityName, so
// callers never have to construct one by hand.
func (m *Miller) FindCrossLayerEntity(entityName string, k int) (*vectorstore.CrossLayerEntity, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("miller: cross-layer entity mapping unavailable (EmbedderUnavailable)")
	}
	queryVector, err := m.embedder.EmbedQuery(entityName)
	if err != nil {
		return nil, err
	}
	return m.vectors.FindCrossLayerEntity(entityName, queryVector.Vector, k, m.store)
}

// WorkspaceStats is get_workspace_stats()'s return shape.
type WorkspaceStats struct {
	TotalFiles   int
	TotalSymbols int
	Languages    []string
	Semantic     SemanticStats
}

// SemanticStats reports the embedding subsystem's availability and
// progress.
type SemanticStats struct {
	Available        bool
	TotalEmbeddings  int
	EmbeddingVersion int
}

// GetWorkspaceStats aggregates file/symbol counts from the store and
// embedding counts from the vector store.
func (m *Miller) GetWorkspaceStats() (WorkspaceStats, error) {
	st, err := m.store.Stats()
	if err != nil {
		return WorkspaceStats{}, err
	}
	langs := make([]string, 0, len(st.Languages))
	for lang := range st.Languages {
		langs = append(langs, lang)
	}

	sem := SemanticStats{Available: m.embedder != nil}
	if tfidf, ok := m.embedder.(*embed.TFIDF); ok {
		sem.EmbeddingVersion = tfidf.VocabularyVersion()
	}
	sem.TotalEmbeddings = m.vectors.Stats().TotalVectors

	return WorkspaceStats{
		TotalFiles:   st.TotalFiles,
		TotalSymbols: st.TotalSymbols,
		Languages:    langs,
		Semantic:     sem,
	}, nil
}

// resolveWorkspacePath normalizes a relative path against the workspace
// root, the way index_file(path) is expected to accept either form.
func (m *Miller) resolveWorkspacePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.cfg.WorkspacePath, path)
}
