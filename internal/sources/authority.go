// Package sources classifies evidence source hosts into authority
// tiers and seeds their track-record scores.
package sources

import (
	"net/url"
	"strings"

	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/model"
)

// Classifier classifies sources into authority tiers
type Classifier struct {
	config       *config.AuthorityConfig
	primaryMap   map[string]bool
	secondaryMap map[string]bool
}

// NewClassifier creates a classifier from configuration
func NewClassifier(cfg *config.AuthorityConfig) *Classifier {
	if cfg == nil {
		cfg = &config.DefaultConfig().Authority
	}

	classifier := &Classifier{
		config:       cfg,
		primaryMap:   make(map[string]bool),
		secondaryMap: make(map[string]bool),
	}

	for _, domain := range cfg.PrimaryDomains {
		classifier.primaryMap[domain] = true
	}
	for _, domain := range cfg.SecondaryDomains {
		classifier.secondaryMap[domain] = true
	}

	return classifier
}

// Classify classifies a URL into an authority tier
func (c *Classifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return model.TierTertiary
	}

	host := parsed.Host
	if idx := strings.Index(host, ":"); idx > 0 {
		host = host[:idx]
	}
	if host == "" {
		return model.TierTertiary
	}

	// Explicit per-domain overrides win
	if c.config.DomainMap != nil {
		if tierStr, ok := c.config.DomainMap[host]; ok {
			return parseTierString(tierStr)
		}
	}

	if matchesDomain(host, c.primaryMap) {
		return model.TierPrimary
	}
	if matchesDomain(host, c.secondaryMap) {
		return model.TierSecondary
	}

	return model.TierTertiary
}

// TrackRecordSeed returns the initial track-record score for a tier,
// on the canonical 0-1 scale.
func TrackRecordSeed(tier model.AuthorityTier) float64 {
	switch tier {
	case model.TierPrimary:
		return 0.9
	case model.TierSecondary:
		return 0.7
	case model.TierTertiary:
		return 0.4
	default:
		return 0.5
	}
}

// matchesDomain checks the host against a domain set, including
// subdomain suffix matches (foo.gov.uk matches gov.uk).
func matchesDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for domain := range domains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func parseTierString(s string) model.AuthorityTier {
	switch strings.ToLower(s) {
	case "primary":
		return model.TierPrimary
	case "secondary":
		return model.TierSecondary
	case "tertiary":
		return model.TierTertiary
	default:
		return model.TierUnknown
	}
}
