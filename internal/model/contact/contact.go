package contact

import "sort"

// Entry is one clickable contact link offered to visitors.
type Entry struct {
	URL        string `json:"url" yaml:"url"`
	Text       string `json:"text" yaml:"text"`
	StyleClass string `json:"style_class" yaml:"style_class"`
}

// Table maps an intent key (whatsapp, instagram, localizacao, ...) to its entry.
type Table map[string]Entry

// Keys returns the intent keys in sorted order.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t))
	for key := range t {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Lookup finds the entry for key.
func (t Table) Lookup(key string) (Entry, bool) {
	entry, ok := t[key]
	return entry, ok
}

// Clone returns a copy that callers may keep without sharing the map.
func (t Table) Clone() Table {
	cloned := make(Table, len(t))
	for key, entry := range t {
		cloned[key] = entry
	}
	return cloned
}

// Button is the structured payload returned instead of prose when a visitor
// asks for one of the contact links.
type Button struct {
	Type       string `json:"type"`
	PreText    string `json:"pre_text"`
	ButtonText string `json:"button_text"`
	ButtonURL  string `json:"button_url"`
	ButtonIcon string `json:"button_icon"`
}

// ButtonFor builds the payload for entry.
func ButtonFor(entry Entry) Button {
	return Button{
		Type:       "button",
		PreText:    "Claro! É só clicar no botão abaixo:",
		ButtonText: entry.Text,
		ButtonURL:  entry.URL,
		ButtonIcon: entry.StyleClass,
	}
}
