package domains

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/llms"
	"github.com/benekli/minerva/pkg/utils"
)

// Entity extraction is regex + heuristic first; an LLM pass covers queries
// the patterns miss when a completer is wired in. A missing entity is not an
// error at this layer; strategies turn it into an explanatory summary.

var (
	locationPrepositionRe = regexp.MustCompile(`(?i)\b(?:in|at|for|near)\s+([\p{L}][\p{L}' .\-]*?)(?:\s+(?:today|tomorrow|right now|now)\b.*)?[?.!]*$`)
	tickerSymbolRe        = regexp.MustCompile(`\$([A-Za-z]{1,5})\b|\b([A-Z]{2,5})\b`)
	routeFromToRe         = regexp.MustCompile(`(?i)\bfrom\s+(.+?)\s+to\s+(.+?)[?.!]*$`)
	routeBetweenRe        = regexp.MustCompile(`(?i)\bbetween\s+(.+?)\s+and\s+(.+?)[?.!]*$`)
	routeCJKRe            = regexp.MustCompile(`(?:从|從)?([\p{Han}]+?)(?:到|至)([\p{Han}]+)`)
)

// cjkRouteSuffixes are question tails trimmed off a CJK route destination.
var cjkRouteSuffixes = []string{
	"怎么走", "怎麼走", "怎么去", "怎麼去", "要多久", "有多远", "有多遠",
	"多远", "多遠", "的距离", "的距離", "怎么样", "怎麼樣",
}

// cjkStopwords are stripped before treating the remaining Han run as a
// location.
var cjkStopwords = []string{
	"現在", "现在", "今天", "明天", "天氣", "天气", "濕度", "湿度",
	"溫度", "温度", "氣溫", "气温", "怎麼樣", "怎么样", "如何",
	"是多少", "多少", "什麼", "什么", "請問", "请问", "的", "呢",
}

// tickerStopwords are uppercase words that look like symbols but are not.
var tickerStopwords = map[string]bool{
	"THE": true, "AND": true, "FOR": true, "WHAT": true, "HOW": true,
	"IS": true, "OF": true, "PRICE": true, "STOCK": true, "NOW": true,
	"USD": true, "TODAY": true, "SHOW": true, "GET": true, "MY": true,
}

// companyTickers maps common company names to symbols.
var companyTickers = map[string]string{
	"apple":     "AAPL",
	"microsoft": "MSFT",
	"google":    "GOOGL",
	"alphabet":  "GOOGL",
	"amazon":    "AMZN",
	"meta":      "META",
	"facebook":  "META",
	"tesla":     "TSLA",
	"nvidia":    "NVDA",
	"netflix":   "NFLX",
	"intel":     "INTC",
	"amd":       "AMD",
	"ibm":       "IBM",
	"oracle":    "ORCL",
	"alibaba":   "BABA",
	"tencent":   "TCEHY",
}

// ExtractLocation pulls a place name out of a weather query.
func ExtractLocation(query string) string {
	if m := locationPrepositionRe.FindStringSubmatch(query); m != nil {
		return strings.TrimSpace(m[1])
	}

	if loc := extractCJKLocation(query); loc != "" {
		return loc
	}

	return ""
}

func extractCJKLocation(query string) string {
	cleaned := query
	for _, stop := range cjkStopwords {
		cleaned = strings.ReplaceAll(cleaned, stop, " ")
	}

	var run []rune
	for _, r := range cleaned {
		if unicode.Is(unicode.Han, r) {
			run = append(run, r)
			continue
		}
		if len(run) > 0 {
			break
		}
	}
	return string(run)
}

// ExtractTicker pulls a stock symbol out of a finance query.
func ExtractTicker(query string) string {
	lower := strings.ToLower(query)
	for company, symbol := range companyTickers {
		if strings.Contains(lower, company) {
			return symbol
		}
	}

	for _, m := range tickerSymbolRe.FindAllStringSubmatch(query, -1) {
		if m[1] != "" {
			return strings.ToUpper(m[1])
		}
		if m[2] != "" && !tickerStopwords[m[2]] {
			return m[2]
		}
	}

	return ""
}

// ExtractRoute pulls origin and destination out of a routing query.
func ExtractRoute(query string) (origin, destination string) {
	if m := routeFromToRe.FindStringSubmatch(query); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	if m := routeBetweenRe.FindStringSubmatch(query); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	if m := routeCJKRe.FindStringSubmatch(query); m != nil {
		return m[1], trimCJKRouteSuffix(m[2])
	}
	return "", ""
}

func trimCJKRouteSuffix(dest string) string {
	for changed := true; changed; {
		changed = false
		for _, suffix := range cjkRouteSuffixes {
			if trimmed := strings.TrimSuffix(dest, suffix); trimmed != dest {
				dest = trimmed
				changed = true
			}
		}
	}
	return dest
}

const entityExtractionPrompt = `Extract the requested entity from the user query. Respond with a JSON object only, no prose.

For weather queries: {"location": "<place name>"}
For finance queries: {"ticker": "<stock symbol>"}
For routing queries: {"origin": "<place>", "destination": "<place>"}

If an entity is absent, use an empty string for its field.`

// ExtractWithLLM asks the completer for entities the patterns missed.
// Returned fields follow the prompt's JSON shape.
func ExtractWithLLM(ctx context.Context, manager *llms.Manager, domain, query string) (map[string]string, error) {
	messages := []llms.Message{
		llms.System(entityExtractionPrompt),
		llms.User(fmt.Sprintf("Domain: %s\nQuery: %s", domain, query)),
	}

	response, err := manager.Complete(ctx, messages, &llms.Options{
		Temperature:    config.Float64Ptr(0),
		ResponseFormat: "json",
	})
	if err != nil {
		return nil, fmt.Errorf("entity extraction failed: %w", err)
	}

	var entities map[string]string
	if err := utils.UnmarshalLenient(response, &entities); err != nil {
		return nil, fmt.Errorf("unparseable entity response: %w", err)
	}
	return entities, nil
}
