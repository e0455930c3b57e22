// Package relevance provides file predicates that restrict mining to a
// domain, such as the files of a language or those carrying a marker.
package relevance

import (
	"path/filepath"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/repominer/pkg/mining"
)

// Config selects the predicates combined by FromConfig.
type Config struct {
	// Extensions match file suffixes, with or without the leading dot.
	Extensions []string `mapstructure:"extensions"      json:"extensions,omitempty"      yaml:"extensions,omitempty"`
	// Languages are GitHub linguist names such as "Python" or "YAML".
	Languages []string `mapstructure:"languages"       json:"languages,omitempty"       yaml:"languages,omitempty"`
	// ContentMarkers match files whose content contains any marker.
	ContentMarkers []string `mapstructure:"content_markers" json:"content_markers,omitempty" yaml:"content_markers,omitempty"`
	// SkipVendored rejects vendored and third-party paths.
	SkipVendored bool `mapstructure:"skip_vendored"   json:"skip_vendored,omitempty"   yaml:"skip_vendored,omitempty"`
}

// All accepts every file.
func All() mining.RelevanceFunc {
	return mining.AcceptAll
}

// Extensions accepts files whose name ends with one of exts, ignoring case.
func Extensions(exts ...string) mining.RelevanceFunc {
	suffixes := make([]string, 0, len(exts))

	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		suffixes = append(suffixes, ext)
	}

	return func(path string, _ *string) bool {
		lower := strings.ToLower(path)

		for _, suffix := range suffixes {
			if strings.HasSuffix(lower, suffix) {
				return true
			}
		}

		return false
	}
}

// Languages accepts files that enry detects as one of langs. Detection uses
// the file name first and falls back to the content when it is available.
func Languages(langs ...string) mining.RelevanceFunc {
	wanted := make(map[string]bool, len(langs))
	for _, lang := range langs {
		wanted[strings.ToLower(strings.TrimSpace(lang))] = true
	}

	return func(path string, content *string) bool {
		name := filepath.Base(path)

		lang := enry.GetLanguage(name, nil)
		if lang == "" && content != nil {
			lang = enry.GetLanguage(name, []byte(*content))
		}

		return lang != "" && wanted[strings.ToLower(lang)]
	}
}

// ContentMarkers accepts files whose content contains one of markers.
// Files without content are rejected.
func ContentMarkers(markers ...string) mining.RelevanceFunc {
	return func(_ string, content *string) bool {
		if content == nil {
			return false
		}

		for _, marker := range markers {
			if marker != "" && strings.Contains(*content, marker) {
				return true
			}
		}

		return false
	}
}

// NotVendored rejects paths enry considers vendored, such as node_modules.
func NotVendored() mining.RelevanceFunc {
	return func(path string, _ *string) bool {
		return !enry.IsVendor(path)
	}
}

// AnyOf accepts a file when any predicate does. With no predicates it
// rejects everything.
func AnyOf(preds ...mining.RelevanceFunc) mining.RelevanceFunc {
	return func(path string, content *string) bool {
		for _, pred := range preds {
			if pred(path, content) {
				return true
			}
		}

		return false
	}
}

// AllOf accepts a file when every predicate does.
func AllOf(preds ...mining.RelevanceFunc) mining.RelevanceFunc {
	return func(path string, content *string) bool {
		for _, pred := range preds {
			if !pred(path, content) {
				return false
			}
		}

		return true
	}
}

// FromConfig accepts files matching any configured group. An empty
// configuration accepts every file.
func FromConfig(cfg Config) mining.RelevanceFunc {
	var groups []mining.RelevanceFunc

	if len(cfg.Extensions) > 0 {
		groups = append(groups, Extensions(cfg.Extensions...))
	}

	if len(cfg.Languages) > 0 {
		groups = append(groups, Languages(cfg.Languages...))
	}

	if len(cfg.ContentMarkers) > 0 {
		groups = append(groups, ContentMarkers(cfg.ContentMarkers...))
	}

	pred := All()
	if len(groups) > 0 {
		pred = AnyOf(groups...)
	}

	if cfg.SkipVendored {
		return AllOf(NotVendored(), pred)
	}

	return pred
}
