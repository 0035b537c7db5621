package scrape

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Credibility scoring is deterministic: the same source always receives the
// same score. Starts from a 0.5 base, adds a domain-class delta, bounded
// content-signal deltas, and a temporal delta, then clamps to [0,1].

const credibilityBase = 0.5

var tier1NewsDomains = map[string]bool{
	"reuters.com":        true,
	"apnews.com":         true,
	"bbc.com":            true,
	"bbc.co.uk":          true,
	"nytimes.com":        true,
	"theguardian.com":    true,
	"wsj.com":            true,
	"economist.com":      true,
	"ft.com":             true,
	"washingtonpost.com": true,
	"npr.org":            true,
}

var academicDomains = map[string]bool{
	"arxiv.org":               true,
	"nature.com":              true,
	"science.org":             true,
	"sciencedirect.com":       true,
	"springer.com":            true,
	"ieee.org":                true,
	"acm.org":                 true,
	"jstor.org":               true,
	"pubmed.ncbi.nlm.nih.gov": true,
	"scholar.google.com":      true,
}

var forumDomains = map[string]bool{
	"reddit.com":           true,
	"quora.com":            true,
	"stackexchange.com":    true,
	"news.ycombinator.com": true,
	"facebook.com":         true,
	"twitter.com":          true,
	"x.com":                true,
	"medium.com":           true,
	"answers.yahoo.com":    true,
	"tieba.baidu.com":      true,
}

var positiveSignals = []string{
	"peer-reviewed",
	"peer reviewed",
	"doi:",
	"methodology",
	"citation",
	"references",
	"abstract",
}

var negativeSignals = []string{
	"clickbait",
	"you won't believe",
	"shocking",
	"miracle cure",
	"doctors hate",
	"one weird trick",
	"sponsored content",
}

var yearRe = regexp.MustCompile(`\b(19[5-9]\d|20\d{2})\b`)

// ScoreCredibility rates one source. The returned details map records each
// component so callers can expose the breakdown.
func ScoreCredibility(sourceURL, title, text string) (float64, map[string]float64) {
	details := map[string]float64{
		"base": credibilityBase,
	}

	domainDelta := domainClassDelta(sourceURL)
	details["domain"] = domainDelta

	contentDelta := contentSignalDelta(title + " " + text)
	details["content"] = contentDelta

	temporalDelta := temporalDelta(text, time.Now().Year())
	details["temporal"] = temporalDelta

	score := credibilityBase + domainDelta + contentDelta + temporalDelta
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	details["final"] = score

	return score, details
}

func domainClassDelta(sourceURL string) float64 {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return 0
	}
	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")

	switch {
	case strings.HasSuffix(host, ".gov") || strings.Contains(host, ".gov."):
		return 0.25
	case strings.HasSuffix(host, ".edu") || strings.Contains(host, ".edu.") || strings.Contains(host, ".ac."):
		return 0.2
	case matchesDomain(host, academicDomains):
		return 0.2
	case matchesDomain(host, tier1NewsDomains):
		return 0.15
	case matchesDomain(host, forumDomains):
		return -0.15
	default:
		return 0
	}
}

// matchesDomain checks the host and every parent domain against the set.
func matchesDomain(host string, domains map[string]bool) bool {
	for {
		if domains[host] {
			return true
		}
		idx := strings.Index(host, ".")
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
}

func contentSignalDelta(content string) float64 {
	lower := strings.ToLower(content)

	delta := 0.0
	for _, signal := range positiveSignals {
		if strings.Contains(lower, signal) {
			delta += 0.05
		}
	}
	if delta > 0.1 {
		delta = 0.1
	}

	negative := 0.0
	for _, signal := range negativeSignals {
		if strings.Contains(lower, signal) {
			negative += 0.05
		}
	}
	if negative > 0.15 {
		negative = 0.15
	}

	return delta - negative
}

// temporalDelta rewards recency based on the newest plausible publication
// year mentioned in the text.
func temporalDelta(text string, currentYear int) float64 {
	newest := 0
	for _, match := range yearRe.FindAllString(text, 20) {
		year, err := strconv.Atoi(match)
		if err != nil || year > currentYear {
			continue
		}
		if year > newest {
			newest = year
		}
	}

	switch {
	case newest == 0:
		return 0
	case currentYear-newest <= 1:
		return 0.05
	case currentYear-newest >= 5:
		return -0.05
	default:
		return 0
	}
}
