// Package session ties the editor together for one run of the tool. A
// Session owns the registry, the current projection and selection, and
// the translation engine. All of its methods must be called from one
// goroutine; translation results reach it only through the engine's
// completion queue, drained by Pump or Wait.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/minios-linux/locasset/asset"
	"github.com/minios-linux/locasset/lockfile"
	"github.com/minios-linux/locasset/registry"
	"github.com/minios-linux/locasset/store"
	"github.com/minios-linux/locasset/translate"
	"github.com/minios-linux/locasset/tree"
)

// Options configure a Session.
type Options struct {
	// Service performs translations. Without one, Translate fails.
	Service translate.Service
	// Engine tunes the translation engine. OnApplied and OnFailure are
	// owned by the session; use the fields below instead.
	Engine translate.Options
	// Lock records translation provenance when set.
	Lock   *lockfile.LockFile
	Logger *zap.Logger
	// OnRefresh is called after every projection rebuild.
	OnRefresh func(nodes []*tree.AssetNode)
	// OnApplied and OnFailure report per-item translation outcomes.
	OnApplied func(a *asset.Asset, it *asset.LocaleItem)
	OnFailure func(err error, c translate.Completion)
}

// Session is the explicit context object of one editor run.
type Session struct {
	st     store.Store
	reg    *registry.Registry
	engine *translate.Engine
	lock   *lockfile.LockFile
	log    *zap.Logger
	opts   Options

	search string
	nodes  []*tree.AssetNode
	sel    tree.Selection
}

// New builds a session on top of st. Nothing is loaded until the first
// call that needs assets.
func New(st store.Store, opts Options) (*Session, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		st:   st,
		reg:  registry.New(st, log.Named("registry")),
		lock: opts.Lock,
		log:  log,
		opts: opts,
		sel:  tree.NoSelection{},
	}
	if opts.Service != nil {
		eo := opts.Engine
		eo.Logger = log.Named("translate")
		eo.OnApplied = s.applied
		eo.OnFailure = opts.OnFailure
		engine, err := translate.NewEngine(opts.Service, st, eo)
		if err != nil {
			return nil, err
		}
		s.engine = engine
	}
	return s, nil
}

// Load performs the initial scan and builds the projection.
func (s *Session) Load(ctx context.Context) error {
	return s.refresh(ctx)
}

// Assets returns every known asset, scanning if needed.
func (s *Session) Assets(ctx context.Context) ([]*asset.Asset, error) {
	return s.reg.All(ctx)
}

// Resolve finds an asset by ID or display name.
func (s *Session) Resolve(ctx context.Context, ref string) (*asset.Asset, error) {
	return s.reg.Resolve(ctx, ref)
}

// Invalidate discards the registry cache, e.g. after the store changed
// behind the session's back, and rebuilds from a fresh scan.
func (s *Session) Invalidate(ctx context.Context) error {
	s.reg.Invalidate()
	return s.refresh(ctx)
}

// SetSearch changes the filter and rebuilds the projection.
func (s *Session) SetSearch(ctx context.Context, search string) error {
	s.search = search
	return s.refresh(ctx)
}

// Search returns the current filter.
func (s *Session) Search() string { return s.search }

// Projection returns the hierarchy built by the last refresh.
func (s *Session) Projection() []*tree.AssetNode { return s.nodes }

// Select sets the selection, mapped onto the current projection.
func (s *Session) Select(sel tree.Selection) tree.Selection {
	s.sel = tree.Revalidate(sel, s.nodes)
	return s.sel
}

// Selection returns the current selection.
func (s *Session) Selection() tree.Selection { return s.sel }

// Controls returns the actions enabled for the current selection.
func (s *Session) Controls() tree.Controls { return tree.ControlsFor(s.sel) }

func (s *Session) refresh(ctx context.Context) error {
	all, err := s.reg.All(ctx)
	if err != nil {
		s.nodes = nil
		s.sel = tree.NoSelection{}
		return err
	}
	s.nodes = tree.Project(all, s.search)
	s.sel = tree.Revalidate(s.sel, s.nodes)
	if s.opts.OnRefresh != nil {
		s.opts.OnRefresh(s.nodes)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// Create persists a new asset with one item per language.
func (s *Session) Create(ctx context.Context, name string, typ asset.ValueType, langs ...string) (*asset.Asset, error) {
	name = strings.TrimSpace(name)
	if err := s.checkNameFree(ctx, name, ""); err != nil {
		return nil, err
	}
	a, err := asset.New(name, typ, langs...)
	if err != nil {
		return nil, err
	}
	if err := s.st.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("%w: create %q: %w", asset.ErrPersistenceFailure, a.Name, err)
	}
	s.reg.Add(a)
	s.log.Info("asset created", zap.String("asset", a.Name), zap.String("id", a.ID))
	return a, s.refresh(ctx)
}

// checkNameFree fails if an asset other than except is called name.
func (s *Session) checkNameFree(ctx context.Context, name, except string) error {
	all, err := s.reg.All(ctx)
	if err != nil {
		return err
	}
	for _, a := range all {
		if a.ID != except && strings.EqualFold(a.Name, name) {
			return errors.Wrapf(asset.ErrInvariantViolation, "asset %q already exists", a.Name)
		}
	}
	return nil
}

// AddLocale appends an empty locale with an unset language.
func (s *Session) AddLocale(ctx context.Context, a *asset.Asset) (*asset.LocaleItem, error) {
	it, err := asset.AddLocale(ctx, s.st, a)
	if err != nil {
		return nil, err
	}
	return it, s.refresh(ctx)
}

// RemoveLocale removes an item and its provenance record.
func (s *Session) RemoveLocale(ctx context.Context, a *asset.Asset, id asset.ItemID) error {
	if err := asset.RemoveLocale(ctx, s.st, a, id); err != nil {
		return err
	}
	s.cleanLock(a)
	return s.refresh(ctx)
}

// Promote makes an item the default locale.
func (s *Session) Promote(ctx context.Context, a *asset.Asset, id asset.ItemID) error {
	already := a.Items.Index(id) == 0
	if err := asset.PromoteToDefault(ctx, s.st, a, id); err != nil {
		return err
	}
	if already {
		return nil
	}
	return s.refresh(ctx)
}

// Rename changes an asset's display name. Names are unique regardless
// of case.
func (s *Session) Rename(ctx context.Context, a *asset.Asset, name string) error {
	if err := s.checkNameFree(ctx, strings.TrimSpace(name), a.ID); err != nil {
		return err
	}
	if err := asset.Rename(ctx, s.st, a, name); err != nil {
		return err
	}
	return s.refresh(ctx)
}

// SetLanguage assigns a language to an item.
func (s *Session) SetLanguage(ctx context.Context, a *asset.Asset, id asset.ItemID, lang string) error {
	if err := asset.SetLanguage(ctx, s.st, a, id, lang); err != nil {
		return err
	}
	s.cleanLock(a)
	return s.refresh(ctx)
}

// SetValue edits an item's value. A manual edit drops the item's
// machine translation record.
func (s *Session) SetValue(ctx context.Context, a *asset.Asset, id asset.ItemID, value string) error {
	if err := asset.SetValue(s.st, a, id, value); err != nil {
		return err
	}
	if s.lock != nil {
		if it, ok := a.Items.Get(id); ok && it.Language != "" {
			s.lock.Forget(a.ID, it.Language)
		}
	}
	return s.refresh(ctx)
}

func (s *Session) cleanLock(a *asset.Asset) {
	if s.lock == nil {
		return
	}
	var langs []string
	for _, it := range a.Items.All() {
		if it.Language != "" {
			langs = append(langs, it.Language)
		}
	}
	s.lock.Clean(a.ID, langs)
}

// ---------------------------------------------------------------------------
// Translation
// ---------------------------------------------------------------------------

// Translate dispatches a batch filling a's empty locales from sourceID.
// Results are applied by Pump or Wait.
func (s *Session) Translate(ctx context.Context, a *asset.Asset, sourceID asset.ItemID) (*translate.Batch, error) {
	if s.engine == nil {
		return nil, errors.Wrap(asset.ErrTranslationFailure, "no translation service configured")
	}
	return s.engine.TranslateMissing(ctx, a, sourceID)
}

// Pending returns the number of dispatched translations not yet applied.
func (s *Session) Pending() int {
	if s.engine == nil {
		return 0
	}
	return s.engine.Pending()
}

// Pump applies every completion already queued without blocking and
// returns how many were applied.
func (s *Session) Pump(ctx context.Context) (int, error) {
	if s.engine == nil {
		return 0, nil
	}
	n := 0
	for {
		select {
		case c := <-s.engine.Completions():
			s.apply(c)
			n++
		default:
			if n == 0 {
				return 0, nil
			}
			return n, s.refresh(ctx)
		}
	}
}

// Wait applies completions until b settles or ctx ends.
func (s *Session) Wait(ctx context.Context, b *translate.Batch) error {
	if s.engine == nil {
		return nil
	}
	for !b.Settled() {
		select {
		case c := <-s.engine.Completions():
			s.apply(c)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.refresh(ctx)
}

func (s *Session) apply(c translate.Completion) {
	// Failures are reported through OnFailure and the batch.
	_ = s.engine.Apply(s.reg, c)
}

func (s *Session) applied(a *asset.Asset, it *asset.LocaleItem, c translate.Completion) {
	if s.lock != nil {
		s.lock.Record(a.ID, it.Language, c.SourceLang, c.SourceText)
	}
	if s.opts.OnApplied != nil {
		s.opts.OnApplied(a, it)
	}
}

// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

// Flush persists dirty assets and the provenance lock.
func (s *Session) Flush(ctx context.Context) error {
	if err := s.st.Flush(ctx); err != nil {
		return err
	}
	if s.lock != nil {
		if err := s.lock.Save(); err != nil {
			return errors.Wrap(err, "saving lock file")
		}
	}
	return nil
}

// Close stops the translation engine and releases the store.
func (s *Session) Close() error {
	if s.engine != nil {
		s.engine.Close()
	}
	return s.st.Close()
}
