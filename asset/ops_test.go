package asset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePersister struct {
	applied []Change
	dirty   []string
	fail    error
}

func (f *fakePersister) Apply(_ context.Context, _ *Asset, c Change) error {
	if f.fail != nil {
		return f.fail
	}
	f.applied = append(f.applied, c)
	return nil
}

func (f *fakePersister) MarkDirty(a *Asset) {
	f.dirty = append(f.dirty, a.ID)
}

func mustAsset(t *testing.T, langs ...string) *Asset {
	t.Helper()
	a, err := New("greeting", TypeText, langs...)
	require.NoError(t, err)
	return a
}

func languages(a *Asset) []string {
	var out []string
	for _, it := range a.Items.All() {
		out = append(out, it.Language)
	}
	return out
}

func TestNewValidates(t *testing.T) {
	_, err := New("", TypeText, "en")
	assert.ErrorIs(t, err, ErrInvariantViolation)

	_, err = New("x", TypeText)
	assert.ErrorIs(t, err, ErrInvariantViolation)

	_, err = New("x", TypeText, "en", "en")
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestRemoveLocale(t *testing.T) {
	ctx := context.Background()

	t.Run("last item is kept", func(t *testing.T) {
		a := mustAsset(t, "en")
		p := &fakePersister{}
		err := RemoveLocale(ctx, p, a, a.Items.Default().ID)
		require.ErrorIs(t, err, ErrInvariantViolation)
		assert.Equal(t, 1, a.Items.Len())
		assert.Empty(t, p.applied)
	})

	t.Run("removes and keeps order", func(t *testing.T) {
		a := mustAsset(t, "en", "fr", "de", "ja")
		fr, _ := a.Items.ByLanguage("fr")
		require.NoError(t, RemoveLocale(ctx, &fakePersister{}, a, fr.ID))
		assert.Equal(t, []string{"en", "de", "ja"}, languages(a))
	})

	t.Run("foreign item", func(t *testing.T) {
		a := mustAsset(t, "en", "fr")
		err := RemoveLocale(ctx, &fakePersister{}, a, NewItemID())
		assert.ErrorIs(t, err, ErrInvariantViolation)
		assert.Equal(t, 2, a.Items.Len())
	})
}

func TestPromoteToDefault(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates", func(t *testing.T) {
		a := mustAsset(t, "en", "fr", "de", "ja")
		de, _ := a.Items.ByLanguage("de")
		require.NoError(t, PromoteToDefault(ctx, &fakePersister{}, a, de.ID))
		assert.Equal(t, []string{"de", "en", "fr", "ja"}, languages(a))
		assert.Same(t, de, a.Items.Default(), "live item pointer must survive the change")
	})

	t.Run("already default is a no-op", func(t *testing.T) {
		a := mustAsset(t, "en", "fr")
		before := a.Items.IDs()
		p := &fakePersister{}
		require.NoError(t, PromoteToDefault(ctx, p, a, a.Items.Default().ID))
		assert.Equal(t, before, a.Items.IDs())
		assert.Empty(t, p.applied)
	})

	t.Run("single locale", func(t *testing.T) {
		a := mustAsset(t, "en")
		err := PromoteToDefault(ctx, &fakePersister{}, a, a.Items.Default().ID)
		assert.ErrorIs(t, err, ErrInvariantViolation)
	})

	t.Run("foreign item", func(t *testing.T) {
		a := mustAsset(t, "en", "fr")
		err := PromoteToDefault(ctx, &fakePersister{}, a, "nope")
		assert.ErrorIs(t, err, ErrInvariantViolation)
	})
}

func TestAddThenRemoveRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := mustAsset(t, "en", "fr")
	before := a.Items.IDs()
	p := &fakePersister{}

	it, err := AddLocale(ctx, p, a)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Items.Len())
	assert.Equal(t, it.ID, a.Items.At(2).ID)
	assert.Empty(t, it.Language)

	require.NoError(t, RemoveLocale(ctx, p, a, it.ID))
	assert.Equal(t, before, a.Items.IDs())
	assert.Equal(t, []ChangeKind{ChangeAddLocale, ChangeRemoveLocale}, []ChangeKind{p.applied[0].Kind, p.applied[1].Kind})
}

func TestPersistenceFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	a := mustAsset(t, "en", "fr", "de")
	before := a.Items.IDs()
	p := &fakePersister{fail: errors.New("disk full")}

	_, err := AddLocale(ctx, p, a)
	require.ErrorIs(t, err, ErrPersistenceFailure)
	assert.Contains(t, err.Error(), "disk full")

	de, _ := a.Items.ByLanguage("de")
	require.ErrorIs(t, PromoteToDefault(ctx, p, a, de.ID), ErrPersistenceFailure)
	require.ErrorIs(t, RemoveLocale(ctx, p, a, de.ID), ErrPersistenceFailure)
	require.ErrorIs(t, Rename(ctx, p, a, "farewell"), ErrPersistenceFailure)

	assert.Equal(t, before, a.Items.IDs())
	assert.Equal(t, "greeting", a.Name)
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	a := mustAsset(t, "en")
	id := a.ID
	p := &fakePersister{}

	require.NoError(t, Rename(ctx, p, a, "  farewell "))
	assert.Equal(t, "farewell", a.Name)
	assert.Equal(t, id, a.ID)
	assert.Equal(t, "greeting", p.applied[0].OldName)

	assert.ErrorIs(t, Rename(ctx, p, a, " "), ErrInvariantViolation)
}

func TestSetLanguage(t *testing.T) {
	ctx := context.Background()
	a := mustAsset(t, "en", "fr")
	p := &fakePersister{}
	it, err := AddLocale(ctx, p, a)
	require.NoError(t, err)

	assert.ErrorIs(t, SetLanguage(ctx, p, a, it.ID, "fr"), ErrInvariantViolation)
	assert.ErrorIs(t, SetLanguage(ctx, p, a, it.ID, "xx-nope"), ErrInvariantViolation)

	require.NoError(t, SetLanguage(ctx, p, a, it.ID, "pt_br"))
	got, _ := a.Items.Get(it.ID)
	assert.Equal(t, "pt-BR", got.Language)
}

func TestSetValueMarksDirty(t *testing.T) {
	a := mustAsset(t, "en")
	p := &fakePersister{}
	require.NoError(t, SetValue(p, a, a.Items.Default().ID, "Hello"))
	assert.True(t, a.Dirty())
	assert.Equal(t, []string{a.ID}, p.dirty)
	assert.Equal(t, "Hello", a.Items.Default().Value)
}
