// Package sqlitestore persists assets in a SQLite database. Every change
// is written in one transaction.
package sqlitestore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/minios-linux/locasset/asset"
	"github.com/minios-linux/locasset/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS assets (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	type TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS locales (
	id       TEXT PRIMARY KEY,
	asset_id TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	language TEXT NOT NULL,
	value    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS locales_asset ON locales(asset_id, position);
`

// Store is a SQLite-backed store.
type Store struct {
	store.DirtySet

	db  *sql.DB
	log *zap.Logger
}

var _ store.Store = (*Store)(nil)

// Open opens (and migrates) the database at path. Use ":memory:" for a
// throwaway database.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path == "" {
		path = "locasset.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, errors.Wrap(err, "create dirs")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enable foreign keys")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	return &Store{db: db, log: log}, nil
}

// LoadAll reads all assets ordered by name.
func (s *Store) LoadAll(ctx context.Context) ([]*asset.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.name, a.type, l.id, l.language, l.value
		FROM assets a JOIN locales l ON l.asset_id = a.id
		ORDER BY a.name COLLATE NOCASE, a.id, l.position`)
	if err != nil {
		return nil, errors.Wrap(err, "select assets")
	}
	defer func() { _ = rows.Close() }()

	var (
		out   []*asset.Asset
		cur   *asset.Asset
		items []*asset.LocaleItem
	)
	finish := func() error {
		if cur == nil {
			return nil
		}
		list, err := asset.NewLocaleList(items...)
		if err != nil {
			return errors.Wrapf(err, "asset %s", cur.ID)
		}
		cur.Items = list
		out = append(out, cur)
		return nil
	}
	for rows.Next() {
		var id, name, typ, itemID, lang, value string
		if err := rows.Scan(&id, &name, &typ, &itemID, &lang, &value); err != nil {
			return nil, errors.Wrap(err, "scan")
		}
		if cur == nil || cur.ID != id {
			if err := finish(); err != nil {
				return nil, err
			}
			vt, ok := asset.ParseValueType(typ)
			if !ok {
				return nil, errors.Errorf("asset %s: unknown type %q", id, typ)
			}
			cur = &asset.Asset{ID: id, Name: name, Type: vt}
			items = nil
		}
		items = append(items, &asset.LocaleItem{ID: asset.ItemID(itemID), Language: lang, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate assets")
	}
	if err := finish(); err != nil {
		return nil, err
	}
	s.log.Debug("loaded assets", zap.Int("count", len(out)))
	return out, nil
}

func writeLocales(ctx context.Context, tx *sql.Tx, a *asset.Asset) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM locales WHERE asset_id = ?`, a.ID); err != nil {
		return errors.Wrap(err, "delete locales")
	}
	for i, it := range a.Items.All() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO locales (id, asset_id, position, language, value) VALUES (?, ?, ?, ?, ?)`,
			string(it.ID), a.ID, i, it.Language, it.Value); err != nil {
			return errors.Wrapf(err, "insert locale %s", it.ID)
		}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// Create inserts a new asset.
func (s *Store) Create(ctx context.Context, a *asset.Asset) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO assets (id, name, type) VALUES (?, ?, ?)`,
			a.ID, a.Name, string(a.Type)); err != nil {
			return errors.Wrapf(err, "insert asset %q", a.Name)
		}
		return writeLocales(ctx, tx, a)
	})
	if err != nil {
		return err
	}
	a.SetDirty(false)
	s.log.Info("created asset", zap.String("id", a.ID), zap.String("name", a.Name))
	return nil
}

// Apply stores the proposed asset state in a single transaction.
func (s *Store) Apply(ctx context.Context, proposed *asset.Asset, c asset.Change) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE assets SET name = ?, type = ? WHERE id = ?`,
			proposed.Name, string(proposed.Type), proposed.ID)
		if err != nil {
			return errors.Wrapf(err, "update asset %s", proposed.ID)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.Wrapf(asset.ErrNotFound, "asset %s is not stored", proposed.ID)
		}
		return writeLocales(ctx, tx, proposed)
	})
	if err != nil {
		return err
	}
	proposed.SetDirty(false)
	s.Forget(proposed.ID)
	s.log.Debug("applied change", zap.String("id", proposed.ID), zap.Stringer("change", c))
	return nil
}

// Flush writes the locales of every dirty asset in one transaction.
func (s *Store) Flush(ctx context.Context) error {
	pending := s.Pending()
	if len(pending) == 0 {
		return nil
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, a := range pending {
			if err := writeLocales(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, a := range pending {
		a.SetDirty(false)
		s.Forget(a.ID)
	}
	s.log.Debug("flushed assets", zap.Int("count", len(pending)))
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
