// Package registry caches the full set of localized assets of a project.
// The cache is filled on first access and discarded wholesale when
// invalidated; there is no incremental refresh.
package registry

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/minios-linux/locasset/asset"
)

// Loader performs a full scan of the project's assets.
type Loader interface {
	LoadAll(ctx context.Context) ([]*asset.Asset, error)
}

// Registry is owned by a single session goroutine and is not safe for
// concurrent use.
type Registry struct {
	loader Loader
	log    *zap.Logger

	assets []*asset.Asset
	valid  bool
	scans  int
}

// New returns an empty, invalidated registry.
func New(loader Loader, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{loader: loader, log: log}
}

// All returns the cached assets, rescanning first if invalidated.
// A failed scan leaves the registry invalidated.
func (r *Registry) All(ctx context.Context) ([]*asset.Asset, error) {
	if r.valid {
		return r.assets, nil
	}
	assets, err := r.loader.LoadAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "scanning assets")
	}
	r.assets = assets
	r.valid = true
	r.scans++
	r.log.Debug("registry rescanned", zap.Int("assets", len(assets)), zap.Int("scan", r.scans))
	return r.assets, nil
}

// Invalidate marks the cache stale; the next All rescans.
func (r *Registry) Invalidate() {
	r.valid = false
	r.assets = nil
}

// Scans returns how many full scans have been performed.
func (r *Registry) Scans() int { return r.scans }

// Find returns the asset with the given ID.
func (r *Registry) Find(ctx context.Context, id string) (*asset.Asset, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range all {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, errors.Wrapf(asset.ErrNotFound, "asset %s", id)
}

// Resolve finds an asset by ID or, failing that, by case-insensitive
// display name.
func (r *Registry) Resolve(ctx context.Context, ref string) (*asset.Asset, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range all {
		if a.ID == ref {
			return a, nil
		}
	}
	for _, a := range all {
		if strings.EqualFold(a.Name, ref) {
			return a, nil
		}
	}
	return nil, errors.Wrapf(asset.ErrNotFound, "asset %q", ref)
}

// Lookup returns a cached asset without triggering a scan. It is used
// to route async completions to assets that are still known.
func (r *Registry) Lookup(id string) (*asset.Asset, bool) {
	if !r.valid {
		return nil, false
	}
	for _, a := range r.assets {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// Add appends a newly created asset to a valid cache. An invalidated
// cache picks it up on the next scan.
func (r *Registry) Add(a *asset.Asset) {
	if r.valid {
		r.assets = append(r.assets, a)
	}
}
