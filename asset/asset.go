// Package asset implements the localized asset model: an asset owns an
// ordered list of locale items whose first entry is the default (source)
// language, plus the transactional operations that restructure it.
package asset

import (
	"strings"

	"github.com/google/uuid"
)

// ValueType tags the payload kind of an asset. Only text assets can be
// machine-translated.
type ValueType string

const (
	TypeText   ValueType = "text"
	TypeSprite ValueType = "sprite"
	TypeAudio  ValueType = "audio"
	TypeOther  ValueType = "other"
)

// ParseValueType maps a user-supplied tag to a ValueType.
func ParseValueType(s string) (ValueType, bool) {
	switch t := ValueType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeText, TypeSprite, TypeAudio, TypeOther:
		return t, true
	}
	return "", false
}

// ItemID is the stable identity of a locale item. It survives reordering
// and a store round-trip.
type ItemID string

// NewItemID returns a fresh random item identity.
func NewItemID() ItemID {
	return ItemID(uuid.NewString())
}

// LocaleItem is one language's value for an asset.
type LocaleItem struct {
	ID ItemID
	// Language is a canonical code from langmeta; empty means unset.
	Language string
	// Value is empty when the item is untranslated.
	Value string
}

// Empty reports whether the item has no value yet.
func (it *LocaleItem) Empty() bool {
	return it.Value == ""
}

// Asset is a localized content asset.
type Asset struct {
	// ID is stable for the lifetime of the asset, including renames.
	ID    string
	Name  string
	Type  ValueType
	Items LocaleList

	dirty bool
}

// New builds an asset with one item per language; the first language
// becomes the default. At least one language is required.
func New(name string, typ ValueType, langs ...string) (*Asset, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invariantf("asset name is empty")
	}
	if len(langs) == 0 {
		return nil, invariantf("asset %q needs at least one locale", name)
	}
	items := make([]*LocaleItem, 0, len(langs))
	for _, l := range langs {
		items = append(items, &LocaleItem{ID: NewItemID(), Language: l})
	}
	list, err := NewLocaleList(items...)
	if err != nil {
		return nil, err
	}
	return &Asset{ID: uuid.NewString(), Name: name, Type: typ, Items: list}, nil
}

// Translatable reports whether the asset carries text.
func (a *Asset) Translatable() bool {
	return a.Type == TypeText
}

// Dirty reports whether the asset has values not yet persisted.
func (a *Asset) Dirty() bool { return a.dirty }

// SetDirty sets or clears the dirty flag. Stores clear it after flushing.
func (a *Asset) SetDirty(d bool) { a.dirty = d }

// Clone returns a deep copy. Item pointers are fresh but IDs are kept,
// so the copy can stand in for a proposed state of the same asset.
func (a *Asset) Clone() *Asset {
	c := *a
	c.Items = a.Items.clone()
	return &c
}

// adopt copies the state of a committed clone into a, keeping the
// existing item pointers for items that survived so holders of
// *LocaleItem keep seeing the live item.
func (a *Asset) adopt(next *Asset) {
	live := make(map[ItemID]*LocaleItem, a.Items.Len())
	for _, it := range a.Items.items {
		live[it.ID] = it
	}
	items := make([]*LocaleItem, 0, next.Items.Len())
	for _, it := range next.Items.items {
		if cur, ok := live[it.ID]; ok {
			*cur = *it
			items = append(items, cur)
			continue
		}
		items = append(items, it)
	}
	a.Name = next.Name
	a.Type = next.Type
	a.dirty = next.dirty
	a.Items = LocaleList{items: items}
}
