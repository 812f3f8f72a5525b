package utils

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// copySuffixes are filename fragments that copy tools and galleries append.
// They carry no identity and are dropped during normalization.
var copySuffixes = map[string]struct{}{
	"copy":      {},
	"copie":     {},
	"kopie":     {},
	"final":     {},
	"edit":      {},
	"edited":    {},
	"duplicate": {},
	"new":       {},
}

// NormalizeNameTokens splits a path's filename stem into lowercase tokens,
// dropping numbering like "(1)", copy suffixes and single characters.
// Tokens are returned sorted and deduplicated.
func NormalizeNameTokens(path string) []string {
	stem := filepath.Base(path)
	if ext := filepath.Ext(stem); ext != "" {
		stem = strings.TrimSuffix(stem, ext)
	}
	stem = strings.ToLower(stem)

	fields := strings.FieldsFunc(stem, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, skip := copySuffixes[f]; skip {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	sort.Strings(tokens)
	return tokens
}

// TokenOverlap returns the Jaccard similarity of two sorted token slices.
func TokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	common := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			common++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - common
	return float64(common) / float64(union)
}

// DefaultCheckpointPath returns the default checkpoint database location,
// next to the executable like the scan index it replaces.
func DefaultCheckpointPath() string {
	exePath, err := os.Executable()
	if err != nil {
		return "imagededup.db"
	}
	return filepath.Join(filepath.Dir(exePath), "imagededup.db")
}

// MatchesFilters applies include/exclude substring filters to a path.
// An empty include list admits everything; exclusion wins over inclusion.
func MatchesFilters(path string, include, exclude []string) bool {
	for _, pat := range exclude {
		if pat != "" && strings.Contains(path, pat) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pat := range include {
		if pat != "" && strings.Contains(path, pat) {
			return true
		}
	}
	return false
}
