package tree

import "github.com/minios-linux/locasset/asset"

// Selection is what the operator has selected in the tree: nothing, an
// asset, or one locale of an asset. The set of variants is closed.
type Selection interface {
	isSelection()
}

// NoSelection is the empty selection.
type NoSelection struct{}

// AssetSelection selects a whole asset.
type AssetSelection struct {
	Asset *asset.Asset
}

// LocaleSelection selects one locale item of an asset.
type LocaleSelection struct {
	Asset *asset.Asset
	Item  *asset.LocaleItem
}

func (NoSelection) isSelection()     {}
func (AssetSelection) isSelection()  {}
func (LocaleSelection) isSelection() {}

// OwningAsset returns the asset the selection belongs to.
func OwningAsset(sel Selection) (*asset.Asset, bool) {
	switch s := sel.(type) {
	case AssetSelection:
		return s.Asset, s.Asset != nil
	case LocaleSelection:
		return s.Asset, s.Asset != nil
	}
	return nil, false
}

// SelectedItem returns the locale item of a locale selection.
func SelectedItem(sel Selection) (*asset.LocaleItem, bool) {
	if s, ok := sel.(LocaleSelection); ok && s.Item != nil {
		return s.Item, true
	}
	return nil, false
}

// Controls lists which operator actions apply to a selection.
type Controls struct {
	AddLocale    bool
	RemoveLocale bool
	Promote      bool
	Rename       bool
	Translate    bool
}

// ControlsFor derives enabled actions from the selection.
func ControlsFor(sel Selection) Controls {
	switch s := sel.(type) {
	case AssetSelection:
		return Controls{AddLocale: true, Rename: true}
	case LocaleSelection:
		n := s.Asset.Items.Len()
		isDefault := s.Asset.Items.Index(s.Item.ID) == 0
		return Controls{
			AddLocale:    true,
			Rename:       true,
			RemoveLocale: n > 1,
			Promote:      n > 1 && !isDefault,
			Translate:    s.Asset.Translatable() && s.Item.Value != "" && s.Item.Language != "",
		}
	}
	return Controls{}
}

// Revalidate maps a selection onto current state after a rebuild: an
// asset or item that no longer exists collapses to NoSelection or to
// the owning asset.
func Revalidate(sel Selection, nodes []*AssetNode) Selection {
	owner, ok := OwningAsset(sel)
	if !ok {
		return NoSelection{}
	}
	var found *AssetNode
	for _, n := range nodes {
		if n.Asset.ID == owner.ID {
			found = n
			break
		}
	}
	if found == nil {
		return NoSelection{}
	}
	item, ok := SelectedItem(sel)
	if !ok {
		return AssetSelection{Asset: found.Asset}
	}
	for _, ln := range found.Locales {
		if ln.Item.ID == item.ID {
			return LocaleSelection{Asset: found.Asset, Item: ln.Item}
		}
	}
	return AssetSelection{Asset: found.Asset}
}
