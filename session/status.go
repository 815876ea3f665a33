package session

import (
	"context"

	"github.com/minios-linux/locasset/asset"
)

// AssetStatus summarizes translation coverage of one asset.
type AssetStatus struct {
	Asset *asset.Asset
	// Total counts items with a language set.
	Total      int
	Translated int
	// Missing lists languages whose value is empty.
	Missing []string
	// Stale lists languages machine-translated from a source text that
	// has since changed or been removed.
	Stale []string
	// Unset counts placeholder items without a language.
	Unset int
}

// Complete reports whether every language has a current value.
func (st AssetStatus) Complete() bool {
	return len(st.Missing) == 0 && len(st.Stale) == 0
}

// Status reports coverage for every asset in registry order.
func (s *Session) Status(ctx context.Context) ([]AssetStatus, error) {
	all, err := s.reg.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AssetStatus, 0, len(all))
	for _, a := range all {
		out = append(out, s.status(a))
	}
	return out, nil
}

func (s *Session) status(a *asset.Asset) AssetStatus {
	st := AssetStatus{Asset: a}
	current := func(lang string) (string, bool) {
		it, ok := a.Items.ByLanguage(lang)
		if !ok {
			return "", false
		}
		return it.Value, true
	}
	for _, it := range a.Items.All() {
		if it.Language == "" {
			st.Unset++
			continue
		}
		st.Total++
		if it.Empty() {
			st.Missing = append(st.Missing, it.Language)
			continue
		}
		st.Translated++
		if s.lock != nil && s.lock.IsStale(a.ID, it.Language, current) {
			st.Stale = append(st.Stale, it.Language)
		}
	}
	return st
}
