package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/locasset/asset"
)

type countingLoader struct {
	calls  int
	assets []*asset.Asset
	err    error
}

func (l *countingLoader) LoadAll(context.Context) ([]*asset.Asset, error) {
	l.calls++
	return l.assets, l.err
}

func TestAllCachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	a, _ := asset.New("Title", asset.TypeText, "en")
	l := &countingLoader{assets: []*asset.Asset{a}}
	r := New(l, nil)

	for i := 0; i < 3; i++ {
		got, err := r.All(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}
	assert.Equal(t, 1, l.calls)

	r.Invalidate()
	_, ok := r.Lookup(a.ID)
	assert.False(t, ok, "lookup must not see an invalidated cache")

	_, err := r.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, l.calls)
	assert.Equal(t, 2, r.Scans())
}

func TestFailedScanStaysInvalid(t *testing.T) {
	ctx := context.Background()
	l := &countingLoader{err: errors.New("boom")}
	r := New(l, nil)

	_, err := r.All(ctx)
	require.Error(t, err)
	l.err = nil
	_, err = r.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, l.calls)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	a, _ := asset.New("Main Title", asset.TypeText, "en")
	r := New(&countingLoader{assets: []*asset.Asset{a}}, nil)

	got, err := r.Resolve(ctx, "main title")
	require.NoError(t, err)
	assert.Same(t, a, got)

	got, err = r.Resolve(ctx, a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = r.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, asset.ErrNotFound)

	_, err = r.Find(ctx, "missing")
	assert.ErrorIs(t, err, asset.ErrNotFound)
}
