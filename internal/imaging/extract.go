package imaging

import (
	"encoding/json"
	"sort"
	"strings"
)

// Keys checked first, in order, at the top level of a completion payload.
var preferredURLKeys = []string{"image", "url", "image_url", "output_url"}

// maxExtractDepth bounds the recursive descent so adversarial payloads
// cannot blow the stack.
const maxExtractDepth = 8

// FirstAssetURL searches a provider completion payload for an image
// location. Known keys win at the top level; otherwise the first
// http(s) string found by depth-limited recursive descent is returned.
// Returns "" when nothing URL-like exists or the payload is not JSON.
func FirstAssetURL(payload []byte) string {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return ""
	}
	if obj, ok := doc.(map[string]any); ok {
		for _, key := range preferredURLKeys {
			if s := urlString(obj[key]); s != "" {
				return s
			}
		}
	}
	return findURL(doc, 0)
}

func findURL(node any, depth int) string {
	if depth > maxExtractDepth {
		return ""
	}
	switch v := node.(type) {
	case string:
		return urlString(v)
	case map[string]any:
		// Known keys first at every level, then everything else.
		for _, key := range preferredURLKeys {
			if s := findURL(v[key], depth+1); s != "" {
				return s
			}
		}
		// Sorted so extraction is stable across runs.
		rest := make([]string, 0, len(v))
		for key := range v {
			if !isPreferredKey(key) {
				rest = append(rest, key)
			}
		}
		sort.Strings(rest)
		for _, key := range rest {
			if s := findURL(v[key], depth+1); s != "" {
				return s
			}
		}
	case []any:
		for _, child := range v {
			if s := findURL(child, depth+1); s != "" {
				return s
			}
		}
	}
	return ""
}

func isPreferredKey(key string) bool {
	for _, k := range preferredURLKeys {
		if k == key {
			return true
		}
	}
	return false
}

func urlString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	return ""
}
