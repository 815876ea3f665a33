package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/locasset/asset"
	"github.com/minios-linux/locasset/lockfile"
	"github.com/minios-linux/locasset/store/yamlstore"
	"github.com/minios-linux/locasset/translate"
	"github.com/minios-linux/locasset/tree"
)

type funcService func(ctx context.Context, req translate.Request) (string, error)

func (f funcService) Translate(ctx context.Context, req translate.Request) (string, error) {
	return f(ctx, req)
}

// failingStore accepts loads and flushes but rejects structural changes.
type failingStore struct {
	*yamlstore.Store
}

func (failingStore) Apply(context.Context, *asset.Asset, asset.Change) error {
	return errors.New("disk full")
}

func (failingStore) Create(context.Context, *asset.Asset) error {
	return errors.New("disk full")
}

func openStore(t *testing.T, dir string) *yamlstore.Store {
	t.Helper()
	st, err := yamlstore.Open(dir, nil)
	require.NoError(t, err)
	return st
}

func newSession(t *testing.T, dir string, opts Options) *Session {
	t.Helper()
	s, err := New(openStore(t, dir), opts)
	require.NoError(t, err)
	require.NoError(t, s.Load(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func languages(a *asset.Asset) []string {
	var out []string
	for _, it := range a.Items.All() {
		out = append(out, it.Language)
	}
	return out
}

func seed(t *testing.T, s *Session) (greeting, quit *asset.Asset) {
	t.Helper()
	ctx := context.Background()
	greeting, err := s.Create(ctx, "Greeting", asset.TypeText, "en", "fr", "de")
	require.NoError(t, err)
	require.NoError(t, s.SetValue(ctx, greeting, greeting.Items.Default().ID, "Hello"))
	quit, err = s.Create(ctx, "Quit icon", asset.TypeSprite, "en")
	require.NoError(t, err)
	return greeting, quit
}

func TestProjectionFollowsSearch(t *testing.T) {
	ctx := context.Background()
	var refreshes int
	s := newSession(t, t.TempDir(), Options{OnRefresh: func([]*tree.AssetNode) { refreshes++ }})
	seed(t, s)

	require.Len(t, s.Projection(), 2)

	require.NoError(t, s.SetSearch(ctx, "french"))
	nodes := s.Projection()
	require.Len(t, nodes, 1)
	assert.Equal(t, "Greeting", nodes[0].Asset.Name)
	require.Len(t, nodes[0].Locales, 1)
	assert.Equal(t, "fr", nodes[0].Locales[0].Item.Language)
	assert.Equal(t, 1, nodes[0].Locales[0].Index)

	require.NoError(t, s.SetSearch(ctx, "QUIT"))
	nodes = s.Projection()
	require.Len(t, nodes, 1)
	assert.True(t, nodes[0].MatchedByName)

	require.NoError(t, s.SetSearch(ctx, "klingon"))
	assert.Empty(t, s.Projection())
	assert.Greater(t, refreshes, 4)
}

func TestRemoveLastLocaleIsRejected(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newSession(t, dir, Options{})
	_, quit := seed(t, s)

	err := s.RemoveLocale(ctx, quit, quit.Items.Default().ID)
	require.ErrorIs(t, err, asset.ErrInvariantViolation)
	assert.Equal(t, 1, quit.Items.Len())

	require.NoError(t, s.Invalidate(ctx))
	reloaded, err := s.Resolve(ctx, "quit icon")
	require.NoError(t, err)
	assert.Equal(t, []string{"en"}, languages(reloaded))
}

func TestPromotePersistsRotation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newSession(t, dir, Options{})
	greeting, quit := seed(t, s)
	ids := greeting.Items.IDs()

	err := s.Promote(ctx, quit, quit.Items.Default().ID)
	require.ErrorIs(t, err, asset.ErrInvariantViolation)

	de, ok := greeting.Items.ByLanguage("de")
	require.True(t, ok)
	require.NoError(t, s.Promote(ctx, greeting, de.ID))
	assert.Equal(t, []string{"de", "en", "fr"}, languages(greeting))

	// Promoting the default again changes nothing.
	require.NoError(t, s.Promote(ctx, greeting, de.ID))

	other := newSession(t, dir, Options{})
	reloaded, err := other.Resolve(ctx, greeting.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"de", "en", "fr"}, languages(reloaded))
	assert.ElementsMatch(t, ids, reloaded.Items.IDs())
	assert.Equal(t, de.ID, reloaded.Items.Default().ID)
}

func TestAddLocaleThenAssignLanguage(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, t.TempDir(), Options{})
	greeting, _ := seed(t, s)

	it, err := s.AddLocale(ctx, greeting)
	require.NoError(t, err)
	assert.Equal(t, 4, greeting.Items.Len())
	assert.Equal(t, "", it.Language)

	err = s.SetLanguage(ctx, greeting, it.ID, "fr")
	require.ErrorIs(t, err, asset.ErrInvariantViolation)

	require.NoError(t, s.SetLanguage(ctx, greeting, it.ID, "ja"))
	assert.Equal(t, []string{"en", "fr", "de", "ja"}, languages(greeting))
}

func TestSelectionSurvivesRebuilds(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, t.TempDir(), Options{})
	greeting, _ := seed(t, s)
	fr, _ := greeting.Items.ByLanguage("fr")

	sel := s.Select(tree.LocaleSelection{Asset: greeting, Item: fr})
	require.IsType(t, tree.LocaleSelection{}, sel)
	assert.True(t, s.Controls().Promote)

	require.NoError(t, s.RemoveLocale(ctx, greeting, fr.ID))
	owner, ok := tree.OwningAsset(s.Selection())
	require.True(t, ok)
	assert.Equal(t, greeting.ID, owner.ID)
	assert.IsType(t, tree.AssetSelection{}, s.Selection())

	require.NoError(t, s.SetSearch(ctx, "nothing matches this"))
	assert.IsType(t, tree.NoSelection{}, s.Selection())
}

func TestPersistenceFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	seed(t, newSession(t, dir, Options{}))

	s, err := New(failingStore{openStore(t, dir)}, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Load(ctx))
	greeting, err := s.Resolve(ctx, "Greeting")
	require.NoError(t, err)
	before := s.Projection()

	err = s.Rename(ctx, greeting, "Welcome")
	require.ErrorIs(t, err, asset.ErrPersistenceFailure)
	assert.Equal(t, "Greeting", greeting.Name)

	fr, _ := greeting.Items.ByLanguage("fr")
	require.ErrorIs(t, s.RemoveLocale(ctx, greeting, fr.ID), asset.ErrPersistenceFailure)
	assert.Equal(t, []string{"en", "fr", "de"}, languages(greeting))

	_, err = s.Create(ctx, "Farewell", asset.TypeText, "en")
	require.ErrorIs(t, err, asset.ErrPersistenceFailure)
	_, err = s.Resolve(ctx, "Farewell")
	require.ErrorIs(t, err, asset.ErrNotFound)
	assert.Equal(t, before, s.Projection())
}

func TestInvalidateRescansStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newSession(t, dir, Options{})
	seed(t, s)

	other := newSession(t, dir, Options{})
	_, err := other.Create(ctx, "Farewell", asset.TypeText, "en")
	require.NoError(t, err)

	_, err = s.Resolve(ctx, "Farewell")
	require.ErrorIs(t, err, asset.ErrNotFound)

	require.NoError(t, s.Invalidate(ctx))
	_, err = s.Resolve(ctx, "Farewell")
	require.NoError(t, err)
	assert.Len(t, s.Projection(), 3)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	s := newSession(t, t.TempDir(), Options{})
	seed(t, s)
	_, err := s.Create(context.Background(), "greeting", asset.TypeText, "en")
	require.ErrorIs(t, err, asset.ErrInvariantViolation)
}

func TestCreateTrimsName(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newSession(t, dir, Options{})
	a, err := s.Create(ctx, "  Farewell ", asset.TypeText, "en")
	require.NoError(t, err)
	assert.Equal(t, "Farewell", a.Name)

	reloaded, err := newSession(t, dir, Options{}).Resolve(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Farewell", reloaded.Name)
}

func TestRenameRejectsNameOfAnotherAsset(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, t.TempDir(), Options{})
	greeting, quit := seed(t, s)

	err := s.Rename(ctx, quit, "GREETING")
	require.ErrorIs(t, err, asset.ErrInvariantViolation)
	assert.Equal(t, "Quit icon", quit.Name)

	found, err := s.Resolve(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, greeting.ID, found.ID)

	// Changing the case of an asset's own name is fine.
	require.NoError(t, s.Rename(ctx, greeting, "GREETING"))
	assert.Equal(t, "GREETING", greeting.Name)
}

func TestTranslateWithoutService(t *testing.T) {
	s := newSession(t, t.TempDir(), Options{})
	greeting, _ := seed(t, s)
	_, err := s.Translate(context.Background(), greeting, greeting.Items.Default().ID)
	require.ErrorIs(t, err, asset.ErrTranslationFailure)
	assert.Zero(t, s.Pending())
}

func TestTranslatePartialFailureEndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	lock, err := lockfile.Load(dir)
	require.NoError(t, err)

	svc := funcService(func(_ context.Context, req translate.Request) (string, error) {
		switch req.TargetLang {
		case "fr":
			return "Bonjour", nil
		default:
			return "", fmt.Errorf("no model for %s", req.TargetLang)
		}
	})
	var applied []string
	var failures []error
	s := newSession(t, dir, Options{
		Service:   svc,
		Lock:      lock,
		OnApplied: func(_ *asset.Asset, it *asset.LocaleItem) { applied = append(applied, it.Language) },
		OnFailure: func(err error, _ translate.Completion) { failures = append(failures, err) },
	})
	greeting, _ := seed(t, s)

	b, err := s.Translate(ctx, greeting, greeting.Items.Default().ID)
	require.NoError(t, err)
	require.Len(t, b.Targets(), 2)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(waitCtx, b))

	fr, _ := greeting.Items.ByLanguage("fr")
	de, _ := greeting.Items.ByLanguage("de")
	assert.Equal(t, "Bonjour", fr.Value)
	assert.Empty(t, de.Value)
	assert.Equal(t, 1, b.Succeeded())
	assert.Equal(t, 1, b.Failed())
	assert.Equal(t, []string{"fr"}, applied)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], asset.ErrTranslationFailure)
	assert.True(t, greeting.Dirty())

	require.NoError(t, s.Flush(ctx))
	assert.False(t, greeting.Dirty())

	other := newSession(t, dir, Options{})
	reloaded, err := other.Resolve(ctx, "Greeting")
	require.NoError(t, err)
	rfr, _ := reloaded.Items.ByLanguage("fr")
	assert.Equal(t, "Bonjour", rfr.Value)

	relock, err := lockfile.Load(dir)
	require.NoError(t, err)
	assert.True(t, relock.Tracked(greeting.ID, "fr"))
	assert.False(t, relock.Tracked(greeting.ID, "de"))
}

func TestStatusReportsMissingAndStale(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	lock, err := lockfile.Load(dir)
	require.NoError(t, err)
	svc := funcService(func(_ context.Context, req translate.Request) (string, error) {
		return req.TargetLang + ":" + req.Text, nil
	})
	s := newSession(t, dir, Options{Service: svc, Lock: lock})
	greeting, _ := seed(t, s)

	statuses, err := s.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, []string{"fr", "de"}, statuses[0].Missing)
	assert.Equal(t, []string{"en"}, statuses[1].Missing)
	assert.False(t, statuses[1].Complete())

	b, err := s.Translate(ctx, greeting, greeting.Items.Default().ID)
	require.NoError(t, err)
	require.NoError(t, s.Wait(ctx, b))

	statuses, err = s.Status(ctx)
	require.NoError(t, err)
	assert.True(t, statuses[0].Complete())
	assert.Equal(t, 3, statuses[0].Translated)

	require.NoError(t, s.SetValue(ctx, greeting, greeting.Items.Default().ID, "Hi"))
	statuses, err = s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fr", "de"}, statuses[0].Stale)

	de, _ := greeting.Items.ByLanguage("de")
	require.NoError(t, s.SetValue(ctx, greeting, de.ID, "Hallo"))
	statuses, err = s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fr"}, statuses[0].Stale)
}

func TestPumpDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	var calls atomic.Int32
	svc := funcService(func(ctx context.Context, req translate.Request) (string, error) {
		calls.Add(1)
		select {
		case <-release:
			return "Hola", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	s := newSession(t, t.TempDir(), Options{Service: svc})
	a, err := s.Create(ctx, "Title", asset.TypeText, "en", "es")
	require.NoError(t, err)
	require.NoError(t, s.SetValue(ctx, a, a.Items.Default().ID, "Hello"))

	b, err := s.Translate(ctx, a, a.Items.Default().ID)
	require.NoError(t, err)
	n, err := s.Pump(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, s.Pending())

	close(release)
	deadline := time.Now().Add(5 * time.Second)
	for !b.Settled() && time.Now().Before(deadline) {
		_, err := s.Pump(ctx)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, b.Settled())
	es, _ := a.Items.ByLanguage("es")
	assert.Equal(t, "Hola", es.Value)
	assert.Zero(t, s.Pending())
	assert.EqualValues(t, 1, calls.Load())
}

func TestStatusFollowsTranslationSource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	lock, err := lockfile.Load(dir)
	require.NoError(t, err)
	svc := funcService(func(_ context.Context, req translate.Request) (string, error) {
		return req.TargetLang + ":" + req.Text, nil
	})
	s := newSession(t, dir, Options{Service: svc, Lock: lock})
	greeting, _ := seed(t, s)
	fr, _ := greeting.Items.ByLanguage("fr")
	de, _ := greeting.Items.ByLanguage("de")
	require.NoError(t, s.SetValue(ctx, greeting, fr.ID, "Bonjour"))

	b, err := s.Translate(ctx, greeting, fr.ID)
	require.NoError(t, err)
	require.NoError(t, s.Wait(ctx, b))
	assert.Equal(t, "de:Bonjour", de.Value)

	stale := func() []string {
		t.Helper()
		statuses, err := s.Status(ctx)
		require.NoError(t, err)
		return statuses[0].Stale
	}
	assert.Empty(t, stale(), "fresh translation from fr")

	require.NoError(t, s.Promote(ctx, greeting, de.ID))
	assert.Empty(t, stale(), "promoting does not change any source text")

	en, _ := greeting.Items.ByLanguage("en")
	require.NoError(t, s.SetValue(ctx, greeting, en.ID, "Hi"))
	assert.Empty(t, stale(), "en was not the source of de")

	require.NoError(t, s.SetValue(ctx, greeting, fr.ID, "Salut"))
	assert.Equal(t, []string{"de"}, stale())

	require.NoError(t, s.SetValue(ctx, greeting, fr.ID, "Bonjour"))
	assert.Empty(t, stale())
	require.NoError(t, s.RemoveLocale(ctx, greeting, fr.ID))
	assert.Equal(t, []string{"de"}, stale(), "source locale removed")
}
