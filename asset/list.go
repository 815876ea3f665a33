package asset

// LocaleList is the ordered locale sequence of an asset.
//
// Invariants: index 0 is the default locale, the list is never empty,
// and no two items share a non-empty language. The zero value is only
// valid as a placeholder before NewLocaleList.
type LocaleList struct {
	items []*LocaleItem
}

// NewLocaleList validates items and returns them as a list.
func NewLocaleList(items ...*LocaleItem) (LocaleList, error) {
	if len(items) == 0 {
		return LocaleList{}, invariantf("locale list must hold at least one item")
	}
	seenLang := make(map[string]bool, len(items))
	seenID := make(map[ItemID]bool, len(items))
	for _, it := range items {
		if seenID[it.ID] {
			return LocaleList{}, invariantf("duplicate locale item id %s", it.ID)
		}
		seenID[it.ID] = true
		if it.Language == "" {
			continue
		}
		if seenLang[it.Language] {
			return LocaleList{}, invariantf("duplicate language %q", it.Language)
		}
		seenLang[it.Language] = true
	}
	return LocaleList{items: append([]*LocaleItem(nil), items...)}, nil
}

// Len returns the number of items.
func (l LocaleList) Len() int { return len(l.items) }

// Default returns the default (source) locale item.
func (l LocaleList) Default() *LocaleItem {
	if len(l.items) == 0 {
		return nil
	}
	return l.items[0]
}

// At returns the item at index i.
func (l LocaleList) At(i int) *LocaleItem { return l.items[i] }

// All returns the items in order. The slice is a copy; the items are live.
func (l LocaleList) All() []*LocaleItem {
	return append([]*LocaleItem(nil), l.items...)
}

// Index returns the position of the item with the given ID, or -1.
func (l LocaleList) Index(id ItemID) int {
	for i, it := range l.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Get returns the item with the given ID.
func (l LocaleList) Get(id ItemID) (*LocaleItem, bool) {
	if i := l.Index(id); i >= 0 {
		return l.items[i], true
	}
	return nil, false
}

// ByLanguage returns the item for lang.
func (l LocaleList) ByLanguage(lang string) (*LocaleItem, bool) {
	for _, it := range l.items {
		if it.Language == lang {
			return it, true
		}
	}
	return nil, false
}

// IDs returns item IDs in order.
func (l LocaleList) IDs() []ItemID {
	ids := make([]ItemID, len(l.items))
	for i, it := range l.items {
		ids[i] = it.ID
	}
	return ids
}

func (l LocaleList) clone() LocaleList {
	items := make([]*LocaleItem, len(l.items))
	for i, it := range l.items {
		c := *it
		items[i] = &c
	}
	return LocaleList{items: items}
}

func (l *LocaleList) push(it *LocaleItem) {
	l.items = append(l.items, it)
}

func (l *LocaleList) remove(i int) {
	l.items = append(l.items[:i:i], l.items[i+1:]...)
}

// rotateToFront moves item i to index 0, shifting 0..i-1 one place right.
func (l *LocaleList) rotateToFront(i int) {
	it := l.items[i]
	copy(l.items[1:i+1], l.items[:i])
	l.items[0] = it
}
