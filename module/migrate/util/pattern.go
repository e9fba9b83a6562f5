package util

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
)

/* Patterns support * and ** wildcards:
- * matches one path segment
- ** matches across segments
*/

// MatchesPattern reports whether the artifact path matches any of the
// patterns. An empty pattern list matches everything.
func MatchesPattern(artifactPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}

	normalizedPath := strings.TrimPrefix(artifactPath, "/")

	for _, pattern := range patterns {
		normalizedPattern := strings.TrimPrefix(pattern, "/")

		if containsUnsupportedWildcards(normalizedPattern) {
			log.Warn().Str("pattern", pattern).Msg("Pattern contains unsupported wildcard characters, only * and ** are supported")
			continue
		}

		g, err := glob.Compile(normalizedPattern, '/')
		if err != nil {
			continue
		}

		if g.Match(normalizedPath) {
			return true
		}
	}

	return false
}

// ValidatePatterns compiles every pattern, returning the first error.
func ValidatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if _, err := glob.Compile(strings.TrimPrefix(pattern, "/"), '/'); err != nil {
			return err
		}
	}
	return nil
}

func containsUnsupportedWildcards(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '?', '[', ']', '{', '}':
			return true
		}
	}
	return false
}
