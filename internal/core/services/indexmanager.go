package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/recall/internal/adapters/driven/index/ivf"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/metrics"
)

// IndexState is the lifecycle state of the clustered ANN index.
type IndexState int

const (
	// IndexAbsent means no clustered index exists; queries use the exact
	// linear scan.
	IndexAbsent IndexState = iota

	// IndexBuilding means a rebuild is in flight. Queries do not block:
	// they keep using the previous Ready index, or the linear scan if
	// none exists yet.
	IndexBuilding

	// IndexReady means a clustered index is serving probes.
	IndexReady
)

// String returns the state name for logs.
func (s IndexState) String() string {
	switch s {
	case IndexBuilding:
		return "building"
	case IndexReady:
		return "ready"
	default:
		return "absent"
	}
}

// IndexConfig tunes the clustered index lifecycle.
type IndexConfig struct {
	// TargetClusterSize and Probes are passed through to the IVF builder.
	TargetClusterSize int
	Probes            int

	// MinVectors is the embedded-segment count below which rebuilds are
	// skipped: clustering a tiny corpus produces degenerate lists and the
	// linear scan is already fast there. Values <= 0 use
	// DefaultMinIndexVectors.
	MinVectors int
}

// DefaultMinIndexVectors is the corpus size below which the engine stays
// on the exact scan instead of building clusters.
const DefaultMinIndexVectors = 1000

// IndexManager owns the Absent -> Building -> Ready state machine of the
// clustered index. Rebuilds run off a store snapshot without holding locks
// that would stall segment writes; the finished index is swapped in
// atomically and the previous one remains authoritative until that swap.
type IndexManager struct {
	store driven.SegmentStore
	cfg   IndexConfig
	log   *zap.Logger
	met   *metrics.Metrics

	mu       sync.RWMutex
	state    IndexState
	current  *ivf.Index
	building bool
}

// NewIndexManager creates an index manager in the Absent state.
func NewIndexManager(store driven.SegmentStore, cfg IndexConfig, log *zap.Logger, met *metrics.Metrics) *IndexManager {
	if cfg.MinVectors <= 0 {
		cfg.MinVectors = DefaultMinIndexVectors
	}
	return &IndexManager{
		store: store,
		cfg:   cfg,
		log:   log,
		met:   met,
		state: IndexAbsent,
	}
}

// State returns the current lifecycle state.
func (m *IndexManager) State() IndexState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Current returns the Ready clustered index, or false when queries must
// fall back to the linear scan. Never blocks on a rebuild.
func (m *IndexManager) Current() (driven.AnnIndex, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, false
	}
	return m.current, true
}

// ErrRebuildInProgress is returned when a rebuild is already running.
// Rebuilds are serialised; concurrent triggers are caller errors.
var ErrRebuildInProgress = errors.New("index rebuild already in progress")

// Rebuild clusters a snapshot of all stored embeddings and swaps the
// result in atomically. Concurrent segment mutation during the build is
// tolerated: the snapshot goes slightly stale and the query planner
// re-validates hits against the store. Cancelling ctx between clustering
// passes aborts the build and leaves the previous index untouched.
func (m *IndexManager) Rebuild(ctx context.Context) error {
	m.mu.Lock()
	if m.building {
		m.mu.Unlock()
		return ErrRebuildInProgress
	}
	m.building = true
	if m.current == nil {
		m.state = IndexBuilding
	}
	m.mu.Unlock()

	start := time.Now()
	err := m.rebuild(ctx)
	m.met.RebuildDuration.Observe(time.Since(start).Seconds())

	m.mu.Lock()
	m.building = false
	if m.current == nil {
		m.state = IndexAbsent
	}
	m.mu.Unlock()

	return err
}

func (m *IndexManager) rebuild(ctx context.Context) error {
	start := time.Now()

	snapshot, err := m.store.ListEmbeddings(ctx, domain.SearchFilters{})
	if err != nil {
		m.met.RebuildsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("snapshotting embeddings: %w", err)
	}

	if len(snapshot) < m.cfg.MinVectors {
		m.log.Info("index rebuild skipped: corpus below threshold",
			zap.Int("vectors", len(snapshot)),
			zap.Int("min_vectors", m.cfg.MinVectors))
		m.met.RebuildsTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	m.log.Info("index rebuild started", zap.Int("vectors", len(snapshot)))

	idx, err := ivf.Build(ctx, snapshot, ivf.Config{
		TargetClusterSize: m.cfg.TargetClusterSize,
		Probes:            m.cfg.Probes,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			m.log.Warn("index rebuild canceled; previous index remains authoritative")
			m.met.RebuildsTotal.WithLabelValues("canceled").Inc()
		} else {
			m.met.RebuildsTotal.WithLabelValues("error").Inc()
		}
		return err
	}

	m.mu.Lock()
	m.current = idx
	m.state = IndexReady
	m.mu.Unlock()

	m.log.Info("index rebuild complete",
		zap.Int("vectors", idx.Len()),
		zap.Duration("elapsed", time.Since(start)))
	m.met.RebuildsTotal.WithLabelValues("ok").Inc()
	return nil
}

// Upsert refreshes a segment's entry on the live index after its embedding
// is attached or replaced. A no-op when no index is Ready.
func (m *IndexManager) Upsert(id string, vec domain.Vector) {
	m.mu.RLock()
	idx := m.current
	m.mu.RUnlock()
	if idx != nil {
		idx.Upsert(id, vec)
	}
}

// Remove orphans index entries for deleted segments so the Ready index
// never accumulates pointers to rows that are gone. Stale entries that
// slip through (snapshot races) are dropped at query time instead.
func (m *IndexManager) Remove(ids []string) {
	m.mu.RLock()
	idx := m.current
	m.mu.RUnlock()
	if idx == nil {
		return
	}
	for _, id := range ids {
		idx.Remove(id)
	}
}
