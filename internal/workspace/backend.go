package workspace

import (
	"context"

	"github.com/roach88/moneymap/internal/graph"
	"github.com/roach88/moneymap/internal/store"
)

// Backend serves one variant of a Manager as an editor backend: Load reads
// the variant and Save publishes the whole graph to it.
type Backend struct {
	m       *Manager
	variant store.Variant
	actorID string
}

// Backend returns an editor backend bound to variant, attributing saves to
// actorID.
func (m *Manager) Backend(v store.Variant, actorID string) *Backend {
	return &Backend{m: m, variant: v, actorID: actorID}
}

func (b *Backend) Load(ctx context.Context, householdID string) (graph.Snapshot, error) {
	snap, _, err := b.m.Load(ctx, householdID, b.variant)
	return snap, err
}

func (b *Backend) Save(ctx context.Context, householdID string, s graph.Snapshot) (graph.IDMaps, error) {
	res, err := b.m.Publish(ctx, householdID, b.variant, b.actorID, store.PayloadFromSnapshot(s))
	if err != nil {
		return graph.IDMaps{}, err
	}
	return res.IDMaps, nil
}
