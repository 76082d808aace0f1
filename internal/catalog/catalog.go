// Package catalog provides the violation-type reference data: the base fine
// for each violation type at each offense tier.
//
// The catalog is an explicitly loaded, immutable snapshot. Callers read
// whatever snapshot is current; Reload swaps in a fresh one atomically.
// There is no hidden per-request cache state.
package catalog

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	id "citepay/pkg/domain"
	dErrors "citepay/pkg/domain-errors"
)

// MaxTier caps offense escalation: every offense past the second is charged
// at the third-offense fine.
const MaxTier = 3

// ViolationType is one catalog entry with its escalating fines.
type ViolationType struct {
	ID         id.ViolationTypeID `json:"id"`
	Code       string             `json:"code"`
	Name       string             `json:"name"`
	FineFirst  decimal.Decimal    `json:"fine_first"`
	FineSecond decimal.Decimal    `json:"fine_second"`
	FineThird  decimal.Decimal    `json:"fine_third"`
	CreatedAt  time.Time          `json:"created_at"`
}

// FineForTier returns the base fine for an offense tier in [1, MaxTier].
func (vt *ViolationType) FineForTier(tier int) (decimal.Decimal, error) {
	switch tier {
	case 1:
		return vt.FineFirst, nil
	case 2:
		return vt.FineSecond, nil
	case MaxTier:
		return vt.FineThird, nil
	}
	return decimal.Zero, dErrors.New(dErrors.CodeInvariantViolation, "offense tier out of range")
}

// Store loads violation types from persistent storage.
type Store interface {
	ListViolationTypes(ctx context.Context) ([]*ViolationType, error)
}

// Snapshot is an immutable view of the catalog at load time.
type Snapshot struct {
	byID     map[id.ViolationTypeID]*ViolationType
	ordered  []*ViolationType
	loadedAt time.Time
}

// ByID looks up a violation type.
func (s *Snapshot) ByID(typeID id.ViolationTypeID) (*ViolationType, bool) {
	vt, ok := s.byID[typeID]
	return vt, ok
}

// Types returns all violation types ordered by code.
func (s *Snapshot) Types() []*ViolationType {
	return s.ordered
}

// LoadedAt reports when this snapshot was read from the store.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Catalog holds the current snapshot and knows how to replace it.
type Catalog struct {
	store  Store
	logger *slog.Logger
	snap   atomic.Pointer[Snapshot]
}

// Option configures a Catalog.
type Option func(c *Catalog)

// WithLogger attaches a logger for reload reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// New constructs a Catalog and performs the initial load.
func New(ctx context.Context, store Store, opts ...Option) (*Catalog, error) {
	c := &Catalog{store: store}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload reads all violation types and atomically swaps the snapshot.
// Readers holding the previous snapshot are unaffected.
func (c *Catalog) Reload(ctx context.Context) error {
	types, err := c.store.ListViolationTypes(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "load violation catalog")
	}

	byID := make(map[id.ViolationTypeID]*ViolationType, len(types))
	ordered := make([]*ViolationType, 0, len(types))
	for _, vt := range types {
		byID[vt.ID] = vt
		ordered = append(ordered, vt)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Code < ordered[j].Code })

	snap := &Snapshot{byID: byID, ordered: ordered, loadedAt: time.Now()}
	c.snap.Store(snap)

	if c.logger != nil {
		c.logger.InfoContext(ctx, "violation catalog loaded", "types", len(ordered))
	}
	return nil
}

// Snapshot returns the current immutable snapshot.
func (c *Catalog) Snapshot() *Snapshot {
	return c.snap.Load()
}
