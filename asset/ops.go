package asset

import (
	"context"
	"fmt"
	"strings"

	"github.com/minios-linux/locasset/langmeta"
)

// ChangeKind names a structural change.
type ChangeKind string

const (
	ChangeAddLocale    ChangeKind = "add-locale"
	ChangeRemoveLocale ChangeKind = "remove-locale"
	ChangePromote      ChangeKind = "promote"
	ChangeRename       ChangeKind = "rename"
	ChangeSetLanguage  ChangeKind = "set-language"
)

// Change describes a structural change handed to the store together
// with the proposed asset state.
type Change struct {
	Kind     ChangeKind
	ItemID   ItemID
	Language string
	// OldName is set for renames so stores keyed by name can move data.
	OldName string
	NewName string
}

func (c Change) String() string {
	switch c.Kind {
	case ChangeRename:
		return fmt.Sprintf("%s %q -> %q", c.Kind, c.OldName, c.NewName)
	case ChangeSetLanguage:
		return fmt.Sprintf("%s %s=%s", c.Kind, c.ItemID, c.Language)
	case "":
		return "change"
	}
	if c.ItemID != "" {
		return fmt.Sprintf("%s %s", c.Kind, c.ItemID)
	}
	return string(c.Kind)
}

// Persister is the slice of the store the operations need.
//
// Apply must persist the proposed state atomically: either the whole
// change is stored or nothing is, and an error is returned.
type Persister interface {
	Apply(ctx context.Context, proposed *Asset, c Change) error
	MarkDirty(a *Asset)
}

// transact runs mutate on a clone, persists the clone, and only then
// commits it into a. On any failure a is left unchanged.
func transact(ctx context.Context, p Persister, a *Asset, c Change, mutate func(*Asset) error) error {
	next := a.Clone()
	if err := mutate(next); err != nil {
		return err
	}
	if err := p.Apply(ctx, next, c); err != nil {
		return fmt.Errorf("%w: %s on %q: %w", ErrPersistenceFailure, c, a.Name, err)
	}
	a.adopt(next)
	return nil
}

// AddLocale appends an empty item with an unset language.
func AddLocale(ctx context.Context, p Persister, a *Asset) (*LocaleItem, error) {
	it := &LocaleItem{ID: NewItemID()}
	err := transact(ctx, p, a, Change{Kind: ChangeAddLocale, ItemID: it.ID}, func(next *Asset) error {
		next.Items.push(it)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// RemoveLocale deletes the item, preserving the order of the rest.
// The last remaining item cannot be removed.
func RemoveLocale(ctx context.Context, p Persister, a *Asset, id ItemID) error {
	i := a.Items.Index(id)
	if i < 0 {
		return invariantf("item %s does not belong to asset %q", id, a.Name)
	}
	if a.Items.Len() <= 1 {
		return invariantf("cannot remove the only locale of asset %q", a.Name)
	}
	return transact(ctx, p, a, Change{Kind: ChangeRemoveLocale, ItemID: id}, func(next *Asset) error {
		next.Items.remove(i)
		return nil
	})
}

// PromoteToDefault moves the item to index 0; the others keep their
// relative order. Promoting the current default does nothing.
func PromoteToDefault(ctx context.Context, p Persister, a *Asset, id ItemID) error {
	if a.Items.Len() <= 1 {
		return invariantf("asset %q has a single locale, nothing to promote", a.Name)
	}
	i := a.Items.Index(id)
	if i < 0 {
		return invariantf("item %s does not belong to asset %q", id, a.Name)
	}
	if i == 0 {
		return nil
	}
	return transact(ctx, p, a, Change{Kind: ChangePromote, ItemID: id}, func(next *Asset) error {
		next.Items.rotateToFront(i)
		return nil
	})
}

// Rename changes the display name. The asset ID never changes.
func Rename(ctx context.Context, p Persister, a *Asset, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return invariantf("new name for asset %q is empty", a.Name)
	}
	if newName == a.Name {
		return nil
	}
	c := Change{Kind: ChangeRename, OldName: a.Name, NewName: newName}
	return transact(ctx, p, a, c, func(next *Asset) error {
		next.Name = newName
		return nil
	})
}

// SetLanguage assigns a registry language to the item. Assigning a
// language already used by another item is rejected.
func SetLanguage(ctx context.Context, p Persister, a *Asset, id ItemID, lang string) error {
	it, ok := a.Items.Get(id)
	if !ok {
		return invariantf("item %s does not belong to asset %q", id, a.Name)
	}
	meta, ok := langmeta.Lookup(lang)
	if !ok {
		return invariantf("unknown language %q", lang)
	}
	if it.Language == meta.Code {
		return nil
	}
	if other, dup := a.Items.ByLanguage(meta.Code); dup && other.ID != id {
		return invariantf("asset %q already has a %s locale", a.Name, meta.Code)
	}
	c := Change{Kind: ChangeSetLanguage, ItemID: id, Language: meta.Code}
	return transact(ctx, p, a, c, func(next *Asset) error {
		nit, _ := next.Items.Get(id)
		nit.Language = meta.Code
		return nil
	})
}

// SetValue edits the item's value. Value edits are not structural: the
// asset is marked dirty and persisted on the next flush.
func SetValue(p Persister, a *Asset, id ItemID, value string) error {
	it, ok := a.Items.Get(id)
	if !ok {
		return invariantf("item %s does not belong to asset %q", id, a.Name)
	}
	if it.Value == value {
		return nil
	}
	it.Value = value
	a.SetDirty(true)
	p.MarkDirty(a)
	return nil
}
