package models

import "strings"

// Categories sind die festen Rubriken, über die der Sweep iteriert.
var Categories = []string{
	"general",
	"business",
	"technology",
	"science",
	"health",
	"sports",
	"entertainment",
}

// Countries bildet Ländercodes auf die Namen ab, die in Suchanfragen
// als Phrase verwendet werden.
var Countries = map[string]string{
	"us": "United States",
	"gb": "United Kingdom",
	"ca": "Canada",
	"au": "Australia",
	"in": "India",
	"de": "Germany",
	"fr": "France",
	"it": "Italy",
	"jp": "Japan",
	"kr": "South Korea",
	"cn": "China",
	"br": "Brazil",
	"mx": "Mexico",
	"za": "South Africa",
	"ae": "UAE",
	"sg": "Singapore",
}

// CountryName liefert den Anzeigenamen zu einem Code, Fallback ist der
// Code in Großbuchstaben.
func CountryName(code string) string {
	if name, ok := Countries[code]; ok {
		return name
	}
	return strings.ToUpper(code)
}

// ValidCategory prüft, ob eine Rubrik im Katalog enthalten ist.
func ValidCategory(slug string) bool {
	for _, c := range Categories {
		if c == slug {
			return true
		}
	}
	return false
}
