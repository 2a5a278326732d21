// Package understand turns raw input into claims and boundaries: it
// normalizes question phrasing, delegates decomposition to the LLM
// collaborator, and enforces the unassigned-boundary contract.
package understand

import (
	"strings"
	"unicode"

	"github.com/arbiterhq/arbiter/internal/config"
)

// NormalizeQuestion converts yes/no question phrasing toward a
// canonical analyzable statement: "Is the policy effective?" becomes
// "The policy is effective". When the subject/predicate split cannot
// be confidently located the input is returned with only the trailing
// "?" stripped - the conservative fallback never fabricates filler.
func NormalizeQuestion(input string, cfg config.UnderstandConfig) string {
	trimmed := strings.TrimSpace(input)
	stripped := strings.TrimSpace(strings.TrimSuffix(trimmed, "?"))

	if !strings.HasSuffix(trimmed, "?") {
		return trimmed
	}

	tokens := strings.Fields(stripped)
	if len(tokens) < 3 {
		return stripped
	}

	starter := strings.ToLower(tokens[0])
	if !contains(cfg.PredicateStarters, starter) {
		return stripped
	}

	// Locate the predicate: the first adjective-suffixed token after at
	// least one subject word.
	split := -1
	for i := 2; i < len(tokens); i++ {
		if hasAdjectiveSuffix(strings.ToLower(tokens[i]), cfg.AdjectiveSuffixes) {
			split = i
			break
		}
	}
	if split == -1 {
		return stripped
	}

	subject := tokens[1:split]
	predicate := tokens[split:]

	rebuilt := append(append([]string{}, subject...), starter)
	rebuilt = append(rebuilt, predicate...)

	return capitalize(strings.Join(rebuilt, " "))
}

func hasAdjectiveSuffix(word string, suffixes []string) bool {
	word = strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, suffix := range suffixes {
		if len(word) > len(suffix) && strings.HasSuffix(word, suffix) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// recencyMarkers flag inputs whose truth depends on current facts
var recencyMarkers = []string{
	"current", "currently", "latest", "today", "this year", "right now",
	"as of now", "recently", "up to date", "still ", "anymore",
}

// DetectRecencySensitivity is the heuristic backstop for deciding
// whether an input's truth depends on up-to-date facts. The LLM
// decomposition's own assessment takes precedence when available.
func DetectRecencySensitivity(input string) bool {
	lower := strings.ToLower(input)
	for _, marker := range recencyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
