// Package langmeta provides the language registry (codes, English and
// native names, emoji flags) that locale items are allowed to use.
package langmeta

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Meta describes language display metadata.
type Meta struct {
	Code    string
	English string
	Native  string
	Flag    string
}

// Registry contains canonical language metadata keyed by BCP 47 code.
// Locale variants are resolved in Resolve() via normalization and base fallback.
var Registry = map[string]Meta{
	"af":    {English: "Afrikaans", Native: "Afrikaans", Flag: "🇿🇦"},
	"am":    {English: "Amharic", Native: "አማርኛ", Flag: "🇪🇹"},
	"ar":    {English: "Arabic", Native: "العربية", Flag: "🇸🇦"},
	"az":    {English: "Azerbaijani", Native: "Azərbaycanca", Flag: "🇦🇿"},
	"be":    {English: "Belarusian", Native: "Беларуская", Flag: "🇧🇾"},
	"bg":    {English: "Bulgarian", Native: "Български", Flag: "🇧🇬"},
	"bn":    {English: "Bengali", Native: "বাংলা", Flag: "🇧🇩"},
	"bs":    {English: "Bosnian", Native: "Bosanski", Flag: "🇧🇦"},
	"ca":    {English: "Catalan", Native: "Català", Flag: "🇪🇸"},
	"cs":    {English: "Czech", Native: "Čeština", Flag: "🇨🇿"},
	"cy":    {English: "Welsh", Native: "Cymraeg", Flag: "🇬🇧"},
	"da":    {English: "Danish", Native: "Dansk", Flag: "🇩🇰"},
	"de":    {English: "German", Native: "Deutsch", Flag: "🇩🇪"},
	"de-AT": {English: "German (Austria)", Native: "Deutsch (Österreich)", Flag: "🇦🇹"},
	"de-CH": {English: "German (Switzerland)", Native: "Deutsch (Schweiz)", Flag: "🇨🇭"},
	"el":    {English: "Greek", Native: "Ελληνικά", Flag: "🇬🇷"},
	"en":    {English: "English", Native: "English", Flag: "🇺🇸"},
	"en-AU": {English: "English (Australia)", Native: "English (Australia)", Flag: "🇦🇺"},
	"en-CA": {English: "English (Canada)", Native: "English (Canada)", Flag: "🇨🇦"},
	"en-GB": {English: "English (UK)", Native: "English (UK)", Flag: "🇬🇧"},
	"en-US": {English: "English (US)", Native: "English (US)", Flag: "🇺🇸"},
	"es":    {English: "Spanish", Native: "Español", Flag: "🇪🇸"},
	"es-MX": {English: "Spanish (Mexico)", Native: "Español (México)", Flag: "🇲🇽"},
	"et":    {English: "Estonian", Native: "Eesti", Flag: "🇪🇪"},
	"eu":    {English: "Basque", Native: "Euskara", Flag: "🇪🇸"},
	"fa":    {English: "Persian", Native: "فارسی", Flag: "🇮🇷"},
	"fi":    {English: "Finnish", Native: "Suomi", Flag: "🇫🇮"},
	"fr":    {English: "French", Native: "Français", Flag: "🇫🇷"},
	"fr-CA": {English: "French (Canada)", Native: "Français (Canada)", Flag: "🇨🇦"},
	"ga":    {English: "Irish", Native: "Gaeilge", Flag: "🇮🇪"},
	"gl":    {English: "Galician", Native: "Galego", Flag: "🇪🇸"},
	"he":    {English: "Hebrew", Native: "עברית", Flag: "🇮🇱"},
	"hi":    {English: "Hindi", Native: "हिन्दी", Flag: "🇮🇳"},
	"hr":    {English: "Croatian", Native: "Hrvatski", Flag: "🇭🇷"},
	"hu":    {English: "Hungarian", Native: "Magyar", Flag: "🇭🇺"},
	"hy":    {English: "Armenian", Native: "Հայերեն", Flag: "🇦🇲"},
	"id":    {English: "Indonesian", Native: "Bahasa Indonesia", Flag: "🇮🇩"},
	"is":    {English: "Icelandic", Native: "Íslenska", Flag: "🇮🇸"},
	"it":    {English: "Italian", Native: "Italiano", Flag: "🇮🇹"},
	"ja":    {English: "Japanese", Native: "日本語", Flag: "🇯🇵"},
	"ka":    {English: "Georgian", Native: "ქართული", Flag: "🇬🇪"},
	"kk":    {English: "Kazakh", Native: "Қазақ тілі", Flag: "🇰🇿"},
	"ko":    {English: "Korean", Native: "한국어", Flag: "🇰🇷"},
	"lt":    {English: "Lithuanian", Native: "Lietuvių", Flag: "🇱🇹"},
	"lv":    {English: "Latvian", Native: "Latviešu", Flag: "🇱🇻"},
	"mk":    {English: "Macedonian", Native: "Македонски", Flag: "🇲🇰"},
	"ms":    {English: "Malay", Native: "Bahasa Melayu", Flag: "🇲🇾"},
	"nb":    {English: "Norwegian Bokmål", Native: "Norsk bokmål", Flag: "🇳🇴"},
	"nl":    {English: "Dutch", Native: "Nederlands", Flag: "🇳🇱"},
	"pl":    {English: "Polish", Native: "Polski", Flag: "🇵🇱"},
	"pt":    {English: "Portuguese", Native: "Português", Flag: "🇵🇹"},
	"pt-BR": {English: "Portuguese (Brazil)", Native: "Português (Brasil)", Flag: "🇧🇷"},
	"ro":    {English: "Romanian", Native: "Română", Flag: "🇷🇴"},
	"ru":    {English: "Russian", Native: "Русский", Flag: "🇷🇺"},
	"sk":    {English: "Slovak", Native: "Slovenčina", Flag: "🇸🇰"},
	"sl":    {English: "Slovenian", Native: "Slovenščina", Flag: "🇸🇮"},
	"sq":    {English: "Albanian", Native: "Shqip", Flag: "🇦🇱"},
	"sr":    {English: "Serbian", Native: "Српски", Flag: "🇷🇸"},
	"sv":    {English: "Swedish", Native: "Svenska", Flag: "🇸🇪"},
	"sw":    {English: "Swahili", Native: "Kiswahili", Flag: "🇹🇿"},
	"ta":    {English: "Tamil", Native: "தமிழ்", Flag: "🇮🇳"},
	"th":    {English: "Thai", Native: "ไทย", Flag: "🇹🇭"},
	"tr":    {English: "Turkish", Native: "Türkçe", Flag: "🇹🇷"},
	"uk":    {English: "Ukrainian", Native: "Українська", Flag: "🇺🇦"},
	"ur":    {English: "Urdu", Native: "اردو", Flag: "🇵🇰"},
	"uz":    {English: "Uzbek", Native: "O'zbek", Flag: "🇺🇿"},
	"vi":    {English: "Vietnamese", Native: "Tiếng Việt", Flag: "🇻🇳"},
	"zh":    {English: "Chinese", Native: "中文", Flag: "🇨🇳"},
	"zh-CN": {English: "Chinese (Simplified)", Native: "简体中文", Flag: "🇨🇳"},
	"zh-TW": {English: "Chinese (Traditional)", Native: "繁體中文", Flag: "🇹🇼"},
}

// Canonicalize normalizes a language code to its BCP 47 form
// (pt_br -> pt-BR, " EN-us " -> en-US). Unparseable input is returned
// with case normalization only.
func Canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	if tag, err := language.Parse(normalized); err == nil {
		return tag.String()
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Lookup returns the registry entry for lang, trying the exact code,
// the canonical form and finally the base language.
func Lookup(lang string) (Meta, bool) {
	if m, ok := Registry[lang]; ok {
		m.Code = lang
		return m, true
	}
	normalized := Canonicalize(lang)
	if m, ok := Registry[normalized]; ok {
		m.Code = normalized
		return m, true
	}
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
		if m, ok := Registry[parts[0]]; ok {
			m.Code = parts[0]
			return m, true
		}
	}
	return Meta{}, false
}

// Resolve returns best-effort language metadata for language codes,
// supporting variants like pt_BR, pt-BR, and locale fallbacks.
// Unknown codes pass through as their own name.
func Resolve(lang string) Meta {
	if m, ok := Lookup(lang); ok {
		return m
	}
	return Meta{Code: lang, English: lang, Native: lang}
}

// Known reports whether lang resolves to a registry entry.
func Known(lang string) bool {
	_, ok := Lookup(lang)
	return ok
}

// Matches reports whether the lowercase query is a substring of the
// code, English or native name of lang.
func Matches(lang, query string) bool {
	if query == "" {
		return true
	}
	m := Resolve(lang)
	for _, s := range []string{lang, m.English, m.Native} {
		if strings.Contains(strings.ToLower(s), query) {
			return true
		}
	}
	return false
}

// Codes returns all registry codes sorted alphabetically.
func Codes() []string {
	codes := make([]string, 0, len(Registry))
	for c := range Registry {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
