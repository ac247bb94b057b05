// Package scrape turns an arbitrary news URL into a clean structured content
// record. The work runs through a fixed pipeline of stages: domain checks,
// a fast static fetch, an optional browser-driven fetch when the page needs
// client-side rendering, then extraction, cleaning and validation.
package scrape

import "strings"

// DomainRules holds per-domain scraping policy. Currently just a blocklist
// of domains that consistently serve challenge pages or hard paywalls.
type DomainRules struct {
	blocked []string
}

// NewDomainRules returns the default rule set.
func NewDomainRules() *DomainRules {
	return &DomainRules{
		blocked: []string{
			"msn.com",
			"msnbc.com",
			"telegraph.co.uk",
		},
	}
}

// NewDomainRulesWith returns a rule set with the given blocked domains.
func NewDomainRulesWith(blocked []string) *DomainRules {
	return &DomainRules{blocked: blocked}
}

// IsBlocked reports whether the domain matches any blocked entry. Matching is
// by substring so subdomains are covered.
func (r *DomainRules) IsBlocked(domain string) bool {
	for _, blocked := range r.blocked {
		if strings.Contains(domain, blocked) {
			return true
		}
	}
	return false
}
