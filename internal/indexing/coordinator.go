package indexing

import (
	"context"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/anortham/miller/internal/config"
	"github.com/anortham/miller/internal/embed"
	"github.com/anortham/miller/internal/extractor"
	"github.com/anortham/miller/internal/grammar"
	"github.com/anortham/miller/internal/merrors"
	"github.com/anortham/miller/internal/parser"
	"github.com/anortham/miller/internal/search"
	"github.com/anortham/miller/internal/store"
	"github.com/anortham/miller/internal/types"
	"github.com/anortham/miller/internal/vectorstore"
)

// maxParallelFiles bounds how many files are parsed and extracted
// concurrently during a workspace sweep — CPU-bound work, per the
// concurrency model's worker-thread pool.
const maxParallelFiles = 8

// Coordinator owns every subsystem the public API wires together: the
// grammar registry, parser manager, extractor registry, symbol store,
// vector store, text search engine, and (optionally) a file watcher. It
// is the component named "Indexing Coordinator" in the component design.
type Coordinator struct {
	cfg        *config.Config
	registry   *grammar.Registry
	parsers    *parser.Manager
	extractors *extractor.Registry
	store      *store.Store
	vectors    *vectorstore.VectorStore
	engine     *search.Engine
	embedder   embed.Embedder
	scanner    *Scanner
	watcher    *FileWatcher

	persistMu sync.Mutex // serializes store writes: single-writer contract

	diagMu      sync.Mutex
	diagnostics []types.Diagnostic

	pendingMu sync.Mutex
	pending   []vectorstore.Batch
}

// New wires a Coordinator from an already-open store/vector store and an
// embedder selected by cfg.EmbeddingModel. Callers (the public API
// facade) open st and vs; Shutdown closes st, and with it the database
// that vs shares.
func New(cfg *config.Config, st *store.Store, vs *vectorstore.VectorStore, embedder embed.Embedder) *Coordinator {
	reg := grammar.NewRegistry()
	reg.Initialize()
	c := &Coordinator{
		cfg:        cfg,
		registry:   reg,
		parsers:    parser.NewManager(reg),
		extractors: extractor.NewRegistry(),
		store:      st,
		vectors:    vs,
		engine:     search.NewEngine(),
		embedder:   embedder,
	}
	c.scanner = NewScanner(reg, cfg)
	return c
}

// Engine exposes the text search engine the public API's search_code
// wraps.
func (c *Coordinator) Engine() *search.Engine { return c.engine }

// Vectors exposes the vector store the public API's semantic_search wraps.
func (c *Coordinator) Vectors() *vectorstore.VectorStore { return c.vectors }

// Store exposes the symbol store the public API reads for hybrid search
// and workspace stats.
func (c *Coordinator) Store() *store.Store { return c.store }

// Registry exposes the grammar registry for health_check's
// parsers.loaded/failed report.
func (c *Coordinator) Registry() *grammar.Registry { return c.registry }

// Diagnostics returns every recoverable warning accumulated across
// indexing runs so far — consumed by health_check.
func (c *Coordinator) Diagnostics() []types.Diagnostic {
	c.diagMu.Lock()
	defer c.diagMu.Unlock()
	out := make([]types.Diagnostic, len(c.diagnostics))
	copy(out, c.diagnostics)
	return out
}

func (c *Coordinator) recordDiagnostic(d types.Diagnostic) {
	c.diagMu.Lock()
	c.diagnostics = append(c.diagnostics, d)
	c.diagMu.Unlock()
}

// IndexWorkspace discovers every candidate file under root, processes
// changed ones in parallel (bounded by maxParallelFiles), and rebuilds
// the text search engine from a consistent store snapshot once the sweep
// completes.
func (c *Coordinator) IndexWorkspace(ctx context.Context, root string) error {
	paths, err := c.scanner.Discover(root)
	if err != nil {
		return merrors.New(merrors.IOError, "IndexWorkspace.discover", err).WithFile(root)
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxParallelFiles)

	for _, path := range paths {
		path := path
		select {
		case <-ctx.Done():
			return merrors.New(merrors.Cancelled, "IndexWorkspace", ctx.Err())
		default:
		}
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			return c.processFile(gctx, path)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	c.flushPending()
	return c.engine.Rebuild(c.store, c.inferredTypes())
}

// IndexFile re-indexes a single file and rebuilds the search engine —
// the single-file counterpart used by both the public API's
// index_file() and the file watcher.
func (c *Coordinator) IndexFile(ctx context.Context, path string) error {
	if err := c.processFile(ctx, path); err != nil {
		return err
	}
	c.flushPending()
	return c.engine.Rebuild(c.store, c.inferredTypes())
}

// DeleteFile removes path's symbols, relationships, and vectors, then
// rebuilds the search engine.
func (c *Coordinator) DeleteFile(path string) error {
	existing, err := c.store.FindSymbols(store.FindSymbolsOptions{FilePath: path})
	if err != nil {
		return err
	}
	ids := make([]string, len(existing))
	for i, s := range existing {
		ids[i] = s.ID
	}

	c.persistMu.Lock()
	err = c.store.DeleteFile(path)
	c.persistMu.Unlock()
	if err != nil {
		return err
	}
	if rmErr := c.vectors.Remove(ids); rmErr != nil {
		c.recordDiagnostic(types.Diagnostic{FilePath: path, Severity: "warning", Message: rmErr.Error(), Stage: "embed"})
	}
	return c.engine.Rebuild(c.store, c.inferredTypes())
}

// processFile is the delta-check + parse + extract + persist pipeline
// for one candidate path. A parse failure records a diagnostic and
// leaves prior symbols in place if the hash is unchanged, removing them
// otherwise; an extractor failure still persists whatever symbols were
// recovered before the failing node, per the error-handling design.
func (c *Coordinator) processFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		c.recordDiagnostic(types.Diagnostic{FilePath: path, Severity: "warning", Message: err.Error(), Stage: "parse"})
		return nil
	}
	hash := types.ContentHash(data)

	priorHash, err := c.store.GetFileHash(path)
	if err != nil {
		return err
	}
	if priorHash == hash {
		return nil // delta check: unchanged, skip — spec.md §4.9 scenario S3
	}

	info, statErr := os.Stat(path)
	var size int64
	if statErr == nil {
		size = info.Size()
	}

	result, err := c.parsers.Parse(path, data)
	if err != nil {
		c.recordDiagnostic(types.Diagnostic{FilePath: path, Severity: "error", Message: err.Error(), Stage: "parse"})
		f := types.File{Path: path, ContentHash: hash, SizeBytes: size}
		c.persistMu.Lock()
		persistErr := c.store.ReplaceFileSymbols(f, nil, nil)
		c.persistMu.Unlock()
		return persistErr
	}
	defer result.Tree.Close()

	ext := c.extractors.For(result.Language)
	tree := &extractor.Tree{Root: result.Tree.RootNode(), Content: data, Path: path, Language: result.Language}

	var symbols []types.Symbol
	var rels []types.Relationship
	if ext != nil {
		var diags []types.Diagnostic
		symbols, diags = ext.ExtractSymbols(tree)
		for _, d := range diags {
			c.recordDiagnostic(d)
		}
		rels, diags = ext.ExtractRelationships(tree, symbols)
		for _, d := range diags {
			c.recordDiagnostic(d)
		}
	}

	f := types.File{Path: path, Language: result.Language, ContentHash: hash, SizeBytes: size, SymbolCount: len(symbols)}

	c.persistMu.Lock()
	err = c.store.ReplaceFileSymbols(f, symbols, rels)
	c.persistMu.Unlock()
	if err != nil {
		return err
	}

	if c.cfg.EnableSemanticSearch && c.embedder != nil {
		c.queueEmbeddings(symbols)
	}
	return nil
}

// queueEmbeddings embeds each symbol and accumulates it into the
// pending batch, flushing once the batch reaches cfg.BatchSize — the
// "embedding tasks are grouped (default size 10-100) and submitted to
// the vector store in batch form" rule.
func (c *Coordinator) queueEmbeddings(symbols []types.Symbol) {
	for _, sym := range symbols {
		snippet := sym.Signature
		if snippet == "" {
			snippet = sym.Name
		}
		if sym.DocComment != "" {
			snippet = snippet + "\n" + sym.DocComment
		}
		result, err := c.embedder.EmbedCode(snippet, sym.FilePath)
		if err != nil {
			c.recordDiagnostic(types.Diagnostic{FilePath: sym.FilePath, Severity: "warning", Message: err.Error(), Stage: "embed"})
			continue
		}
		c.pendingMu.Lock()
		c.pending = append(c.pending, vectorstore.Batch{SymbolID: sym.ID, Embedding: result.Vector})
		ready := len(c.pending) >= c.batchSize()
		var batch []vectorstore.Batch
		if ready {
			batch = c.pending
			c.pending = nil
		}
		c.pendingMu.Unlock()

		if ready {
			if err := c.vectors.StoreBatch(batch); err != nil {
				c.recordDiagnostic(types.Diagnostic{Severity: "warning", Message: err.Error(), Stage: "embed"})
			}
		}
	}
}

func (c *Coordinator) batchSize() int {
	if c.cfg.BatchSize <= 0 {
		return 50
	}
	return c.cfg.BatchSize
}

// flushPending submits any partially-filled embedding batch left over
// after a sweep completes.
func (c *Coordinator) flushPending() {
	c.pendingMu.Lock()
	batch := c.pending
	c.pending = nil
	c.pendingMu.Unlock()
	if len(batch) == 0 {
		return
	}
	if err := c.vectors.StoreBatch(batch); err != nil {
		c.recordDiagnostic(types.Diagnostic{Severity: "warning", Message: err.Error(), Stage: "embed"})
	}
}

// inferredTypes asks every registered extractor for the declared types
// of the symbols it is responsible for, keyed by symbol id, for the
// text search engine's type-aware ranking.
func (c *Coordinator) inferredTypes() map[string]string {
	out := make(map[string]string)
	byLanguage := make(map[string][]types.Symbol)
	_ = c.store.IterAllSymbols(func(s types.Symbol) error {
		byLanguage[s.Language] = append(byLanguage[s.Language], s)
		return nil
	})
	for lang, syms := range byLanguage {
		ext := c.extractors.For(lang)
		if ext == nil {
			continue
		}
		for id, t := range ext.InferTypes(syms) {
			out[id] = t
		}
	}
	return out
}

// EnableWatcher starts watch mode on root, feeding file-system events
// through the same delta-check pipeline after debounce.
func (c *Coordinator) EnableWatcher(root string) error {
	if !c.cfg.EnableWatcher {
		return nil
	}
	w, err := NewFileWatcher(c.cfg, c.scanner, func(path string) error {
		return c.IndexFile(context.Background(), path)
	}, func(path string) error {
		return c.DeleteFile(path)
	})
	if err != nil {
		return err
	}
	c.watcher = w
	return w.Start(root)
}

// Shutdown stops the watcher, flushes pending embedding batches, and
// closes the store in that order — the resource lifecycle named in
// spec.md §5. The vector store has no Close of its own; it lives in the
// store's database file and goes away with it.
func (c *Coordinator) Shutdown() error {
	if c.watcher != nil {
		_ = c.watcher.Stop()
	}
	c.flushPending()
	return c.store.Close()
}
