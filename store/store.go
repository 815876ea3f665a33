// Package store defines the persistence boundary for localized assets.
// Concrete backends live in the yamlstore and sqlitestore subpackages.
package store

import (
	"context"

	"github.com/minios-linux/locasset/asset"
)

// Store persists localized assets.
//
// Apply must be all-or-nothing: on error nothing of the change is
// persisted. Flush writes every asset marked dirty and clears its flag.
type Store interface {
	asset.Persister

	// LoadAll returns every asset in a stable order.
	LoadAll(ctx context.Context) ([]*asset.Asset, error)
	// Create persists a new asset.
	Create(ctx context.Context, a *asset.Asset) error
	// Flush persists all assets marked dirty.
	Flush(ctx context.Context) error
	Close() error
}

// DirtySet tracks assets marked dirty by ID, in marking order.
// Backends embed it to implement MarkDirty.
type DirtySet struct {
	order  []string
	assets map[string]*asset.Asset
}

// MarkDirty records a for the next flush.
func (d *DirtySet) MarkDirty(a *asset.Asset) {
	if d.assets == nil {
		d.assets = make(map[string]*asset.Asset)
	}
	if _, ok := d.assets[a.ID]; !ok {
		d.order = append(d.order, a.ID)
	}
	d.assets[a.ID] = a
}

// Forget drops a from the dirty set, typically after a structural change
// persisted its full state.
func (d *DirtySet) Forget(id string) {
	if _, ok := d.assets[id]; !ok {
		return
	}
	delete(d.assets, id)
	for i, v := range d.order {
		if v == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Pending returns dirty assets in marking order.
func (d *DirtySet) Pending() []*asset.Asset {
	out := make([]*asset.Asset, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.assets[id])
	}
	return out
}
