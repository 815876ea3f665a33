// Package yamlstore keeps one YAML document per asset in a directory.
// Files are named after the asset's display name, so a rename moves the
// file while the asset ID stored inside it stays the same.
package yamlstore

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/locasset/asset"
	"github.com/minios-linux/locasset/store"
)

// Ext is the extension of asset files.
const Ext = ".asset.yaml"

type fileLocale struct {
	ID       string `yaml:"id"`
	Language string `yaml:"language"`
	Value    string `yaml:"value"`
}

type fileAsset struct {
	ID      string       `yaml:"id"`
	Name    string       `yaml:"name"`
	Type    string       `yaml:"type"`
	Locales []fileLocale `yaml:"locales"`
}

// Store is a directory-backed store.
type Store struct {
	store.DirtySet

	dir   string
	log   *zap.Logger
	files map[string]string // asset ID -> file name
}

var _ store.Store = (*Store)(nil)

// Open returns a store rooted at dir, creating the directory if needed.
func Open(dir string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating asset directory %s", dir)
	}
	return &Store{dir: dir, log: log, files: make(map[string]string)}, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns the file name used for an asset display name.
func FileName(name string) string {
	slug := strings.Trim(unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_"), "._")
	if slug == "" {
		slug = "asset"
	}
	return slug + Ext
}

// LoadAll reads every *.asset.yaml file in the directory.
func (s *Store) LoadAll(ctx context.Context) ([]*asset.Asset, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", s.dir)
	}
	files := make(map[string]string)
	var out []*asset.Asset
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		a, err := s.read(e.Name())
		if err != nil {
			return nil, err
		}
		if prev, dup := files[a.ID]; dup {
			return nil, errors.Errorf("asset id %s appears in both %s and %s", a.ID, prev, e.Name())
		}
		files[a.ID] = e.Name()
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if li != lj {
			return li < lj
		}
		return out[i].ID < out[j].ID
	})
	s.files = files
	s.log.Debug("loaded assets", zap.String("dir", s.dir), zap.Int("count", len(out)))
	return out, nil
}

func (s *Store) read(name string) (*asset.Asset, error) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var fa fileAsset
	if err := yaml.Unmarshal(data, &fa); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if fa.ID == "" {
		return nil, errors.Errorf("%s: asset has no id", path)
	}
	typ, ok := asset.ParseValueType(fa.Type)
	if !ok {
		return nil, errors.Errorf("%s: unknown asset type %q", path, fa.Type)
	}
	items := make([]*asset.LocaleItem, 0, len(fa.Locales))
	for _, l := range fa.Locales {
		id := asset.ItemID(l.ID)
		if id == "" {
			id = asset.NewItemID()
		}
		items = append(items, &asset.LocaleItem{ID: id, Language: l.Language, Value: l.Value})
	}
	list, err := asset.NewLocaleList(items...)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return &asset.Asset{ID: fa.ID, Name: fa.Name, Type: typ, Items: list}, nil
}

func encode(a *asset.Asset) ([]byte, error) {
	fa := fileAsset{ID: a.ID, Name: a.Name, Type: string(a.Type)}
	for _, it := range a.Items.All() {
		fa.Locales = append(fa.Locales, fileLocale{ID: string(it.ID), Language: it.Language, Value: it.Value})
	}
	return yaml.Marshal(&fa)
}

// write stores a under name via a temp file and rename.
func (s *Store) write(name string, a *asset.Asset) error {
	data, err := encode(a)
	if err != nil {
		return errors.Wrapf(err, "encoding asset %q", a.Name)
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return errors.Wrapf(err, "replacing %s", name)
	}
	return nil
}

// claim checks that name is free or already owned by id.
func (s *Store) claim(name, id string) error {
	for other, f := range s.files {
		if f == name && other != id {
			return errors.Errorf("file %s already belongs to asset %s", name, other)
		}
	}
	if _, owned := s.files[id]; !owned || s.files[id] != name {
		if _, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
			return errors.Errorf("file %s already exists", name)
		}
	}
	return nil
}

// Create writes a new asset file.
func (s *Store) Create(_ context.Context, a *asset.Asset) error {
	if _, exists := s.files[a.ID]; exists {
		return errors.Errorf("asset %s already exists", a.ID)
	}
	name := FileName(a.Name)
	if err := s.claim(name, a.ID); err != nil {
		return err
	}
	if err := s.write(name, a); err != nil {
		return err
	}
	s.files[a.ID] = name
	a.SetDirty(false)
	s.log.Info("created asset", zap.String("id", a.ID), zap.String("file", name))
	return nil
}

// Apply persists the proposed state of an asset. A rename writes the
// new file first and removes the old one afterwards; if the removal
// fails the new file is dropped again.
func (s *Store) Apply(_ context.Context, proposed *asset.Asset, c asset.Change) error {
	old, ok := s.files[proposed.ID]
	if !ok {
		return errors.Wrapf(asset.ErrNotFound, "asset %s is not stored", proposed.ID)
	}
	name := FileName(proposed.Name)
	if name != old {
		if err := s.claim(name, proposed.ID); err != nil {
			return err
		}
	}
	if err := s.write(name, proposed); err != nil {
		return err
	}
	if name != old {
		if err := os.Remove(filepath.Join(s.dir, old)); err != nil && !os.IsNotExist(err) {
			_ = os.Remove(filepath.Join(s.dir, name))
			return errors.Wrapf(err, "removing %s", old)
		}
		s.files[proposed.ID] = name
	}
	proposed.SetDirty(false)
	s.Forget(proposed.ID)
	s.log.Debug("applied change", zap.String("id", proposed.ID), zap.Stringer("change", c), zap.String("file", name))
	return nil
}

// Flush writes all dirty assets.
func (s *Store) Flush(ctx context.Context) error {
	for _, a := range s.Pending() {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, ok := s.files[a.ID]
		if !ok {
			return errors.Wrapf(asset.ErrNotFound, "asset %s is not stored", a.ID)
		}
		if err := s.write(name, a); err != nil {
			return err
		}
		a.SetDirty(false)
		s.Forget(a.ID)
		s.log.Debug("flushed asset", zap.String("id", a.ID), zap.String("file", name))
	}
	return nil
}

// Close is a no-op; files are written eagerly.
func (s *Store) Close() error { return nil }
