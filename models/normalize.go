// models/normalize.go
package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Free-text enum lookup. Keys are lowercase without diacritics; anything not
// in a table is stored exactly as the caller sent it.
var (
	materielTypes = map[string]string{
		"ordinateur": "computer", "ordinateur(s)": "computer", "computer": "computer", "laptop": "computer", "pc": "computer",
		"camera": "camera",
		"microphone": "microphone", "micro": "microphone", "mic": "microphone",
		"ecran": "screen", "screen": "screen", "monitor": "screen",
		"clavier": "keyboard", "keyboard": "keyboard",
		"souris": "mouse", "mouse": "mouse",
		"cable": "cable",
		"telephone": "phone", "phone": "phone",
		"tablette": "tablet", "tablet": "tablet",
		"autre": "other", "other": "other",
	}
	conditions = map[string]string{
		"excellent": "excellent",
		"bon":       "good", "good": "good",
		"moyen": "fair", "fair": "fair",
		"mauvais": "poor", "poor": "poor",
	}
	categories = map[string]string{
		"electronique": "electronics", "electronics": "electronics",
		"informatique": "it", "it": "it",
		"audio/video": "audio_video", "audio-video": "audio_video", "audio_video": "audio_video",
		"mobilier": "furniture", "furniture": "furniture",
		"autre": "other", "other": "other",
	}
)

func foldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

func lookup(table map[string]string, v string) string {
	if v == "" {
		return v
	}
	if c, ok := table[foldKey(v)]; ok {
		return c
	}
	return v
}

func NormalizeType(v string) string      { return lookup(materielTypes, v) }
func NormalizeCategory(v string) string  { return lookup(categories, v) }
func NormalizeCondition(v string) string { return lookup(conditions, v) }
