// Package tree builds the two-level asset → locale hierarchy shown by
// the shell, filtered by a search string. Nodes are derived and never
// persisted.
package tree

import (
	"strings"

	"github.com/minios-linux/locasset/asset"
	"github.com/minios-linux/locasset/langmeta"
)

// AssetNode wraps an asset and its visible locale nodes.
type AssetNode struct {
	Asset   *asset.Asset
	Locales []*LocaleNode
	// MatchedByName is true when the asset matched by display name and
	// therefore shows all of its locales.
	MatchedByName bool
}

// LocaleNode wraps one locale item. Owner is a non-owning back reference.
type LocaleNode struct {
	Item  *asset.LocaleItem
	Index int
	Owner *AssetNode
}

// IsDefault reports whether the node is the asset's default locale.
func (n *LocaleNode) IsDefault() bool { return n.Index == 0 }

// Project returns the filtered hierarchy for assets. It is pure: equal
// inputs yield equal projections.
//
// An asset is included if its name contains search (case-insensitive)
// or if any of its locales' language names do. Name matches show every
// locale; locale-only matches show just the matching locales. An empty
// search matches everything.
func Project(assets []*asset.Asset, search string) []*AssetNode {
	query := strings.ToLower(strings.TrimSpace(search))
	out := make([]*AssetNode, 0, len(assets))
	for _, a := range assets {
		node := &AssetNode{Asset: a}
		node.MatchedByName = query == "" || strings.Contains(strings.ToLower(a.Name), query)
		for i, it := range a.Items.All() {
			if !node.MatchedByName && !localeMatches(it, query) {
				continue
			}
			node.Locales = append(node.Locales, &LocaleNode{Item: it, Index: i, Owner: node})
		}
		if node.MatchedByName || len(node.Locales) > 0 {
			out = append(out, node)
		}
	}
	return out
}

func localeMatches(it *asset.LocaleItem, query string) bool {
	if it.Language == "" {
		return false
	}
	return langmeta.Matches(it.Language, query)
}

// Count returns the number of asset and locale nodes.
func Count(nodes []*AssetNode) (assets, locales int) {
	for _, n := range nodes {
		assets++
		locales += len(n.Locales)
	}
	return
}
