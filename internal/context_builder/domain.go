package context_builder //nolint:revive // var-naming: using underscores for domain clarity

import (
	"strings"

	"github.com/lewisedginton/contextmemory/internal/context_store"
)

const (
	matchedDomainConfidence   = 0.8
	unmatchedDomainConfidence = 0.3
	// fallbackDomain labels domain knowledge that does not name its domain.
	fallbackDomain = "general"
)

type domainKeywords struct {
	domain   string
	keywords []string
}

// domainTable is checked in order so detected domains come out stable.
var domainTable = []domainKeywords{
	{"technology", []string{"code", "programming", "software", "tech", "ai", "machine learning"}},
	{"business", []string{"business", "market", "finance", "strategy", "management"}},
	{"health", []string{"health", "medical", "fitness", "wellness", "treatment"}},
	{"education", []string{"learn", "study", "education", "academic", "research"}},
	{"creative", []string{"art", "design", "creative", "music", "writing", "innovation"}},
}

// detectDomains matches whole words of the message against the domain table
// and adds the domain of every domain_knowledge entry among the results.
func detectDomains(message string, semantic []context_store.EntryView) DomainContext {
	words := messageWords(message)

	var domains []string
	seen := make(map[string]struct{})
	add := func(d string) {
		if _, ok := seen[d]; ok {
			return
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}

	for _, row := range domainTable {
		for _, kw := range row.keywords {
			if containsPhrase(words, strings.Fields(kw)) {
				add(row.domain)
				break
			}
		}
	}

	knowledge := []context_store.EntryView{}
	for _, v := range semantic {
		if v.Type != context_store.DomainKnowledge {
			continue
		}
		knowledge = append(knowledge, v)
		add(entryDomain(v))
	}

	dc := DomainContext{
		DetectedDomains:   domains,
		Confidence:        unmatchedDomainConfidence,
		RelevantKnowledge: knowledge,
	}
	if dc.DetectedDomains == nil {
		dc.DetectedDomains = []string{}
	}
	if len(domains) > 0 {
		dc.Confidence = matchedDomainConfidence
	}
	return dc
}

func entryDomain(v context_store.EntryView) string {
	if d, ok := v.Data.Field("domain"); ok {
		if s, ok := d.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return fallbackDomain
}

func messageWords(message string) []string {
	fields := strings.Fields(strings.ToLower(message))
	words := fields[:0]
	for _, f := range fields {
		if w := trimPunct(f); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// containsPhrase reports whether phrase occurs as consecutive words.
func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, p := range phrase {
			if words[i+j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
