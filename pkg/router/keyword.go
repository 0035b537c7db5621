package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// KeywordRouter is the deterministic first-line classifier. Pure function
// of the query text; cannot fail.
type KeywordRouter struct{}

// NewKeywordRouter creates the classifier.
func NewKeywordRouter() *KeywordRouter {
	return &KeywordRouter{}
}

// Lexicons mix Latin and CJK terms; a query may use both scripts. The
// domain order below is also the tie-break priority.
var (
	weatherKeywords = []string{
		"weather", "temperature", "forecast", "humidity", "rain", "snow",
		"sunny", "cloudy", "wind speed", "how hot", "how cold",
		"天气", "天氣", "气温", "氣溫", "温度", "溫度", "湿度", "濕度",
		"下雨", "降雨", "预报", "預報",
	}
	financeKeywords = []string{
		"stock", "share price", "ticker", "quote", "trading at", "nasdaq",
		"dow jones", "market cap", "stock price",
		"股票", "股价", "股價", "行情", "市值",
	}
	routingKeywords = []string{
		"how far", "distance", "route", "directions", "navigate",
		"drive from", "driving distance",
		"怎么走", "怎麼走", "路线", "路線", "距离", "距離", "导航", "導航",
	}
	ragKeywords = []string{
		"according to the document", "in the document", "knowledge base",
		"in my notes", "the uploaded", "the ingested", "in the manual",
		"文档", "文檔", "资料库", "資料庫", "知识库", "知識庫",
	}
	codeKeywords = []string{
		"calculate", "compute", "write code", "write a program", "function",
		"algorithm", "script", "fibonacci", "factorial", "sort a list",
		"计算", "編程", "编程", "写代码", "寫代碼",
	}
	researchKeywords = []string{
		"research", "compare", "analyze", "analyse", "summarize",
		"investigate", "advances", "trends", "developments", "state of the art",
		"latest news", "find out",
		"研究", "比较", "比較", "分析", "调研", "調研", "综述",
	}

	realTimeMarkers = []string{
		"now", "right now", "current", "currently", "latest", "today",
		"现在", "現在", "实时", "實時", "即時", "目前", "今天",
	}
	calculationIndicators = []string{
		"how many", "how much", "多少", "几个", "幾個",
	}

	mathPatternRe = regexp.MustCompile(`(?i)(\b(sin|cos|tan|sqrt|log|exp|pow)\s*\(|\d+(\.\d+)?\s*[-+*/^]\s*\d|π|\bpi\b|\d+\s*\^\s*\d+|\d+\s*\*\*\s*\d+)`)
	unitConvRe    = regexp.MustCompile(`(?i)\b\d+(\.\d+)?\s*[a-z°]+\s+(in|to)\s+[a-z°]+\b`)
	unitConvCJKRe = regexp.MustCompile(`换算|換算|转换成|轉換成|转换为|轉換為`)
)

// kindTools is the static TaskKind to tool mapping applied to keyword
// decisions.
var kindTools = map[TaskKind][]string{
	TaskResearch: {"web_search", "web_scrape"},
	TaskCode:     {"code_sandbox"},
	TaskRAG:      {"vector_search"},
	TaskWeather:  {"weather_api"},
	TaskFinance:  {"finance_api"},
	TaskRouting:  {"routing_api"},
}

// kindDurations are rough wall-clock hints per kind, in milliseconds.
var kindDurations = map[TaskKind]int64{
	TaskResearch: 30000,
	TaskCode:     15000,
	TaskChat:     2000,
	TaskRAG:      5000,
	TaskWeather:  3000,
	TaskFinance:  3000,
	TaskRouting:  3000,
	TaskWorkflow: 60000,
}

// domainOrder is the lexicon priority for tie-breaking.
var domainOrder = []struct {
	kind     TaskKind
	keywords []string
}{
	{TaskWeather, weatherKeywords},
	{TaskFinance, financeKeywords},
	{TaskRouting, routingKeywords},
	{TaskRAG, ragKeywords},
}

func (r *KeywordRouter) Route(_ context.Context, query, _ string) (*RoutingDecision, error) {
	lower := strings.ToLower(query)

	realTime := countMatches(lower, realTimeMarkers) > 0
	calcHits := countMatches(lower, calculationIndicators)
	mathHit := mathPatternRe.MatchString(query)
	unitHit := unitConvRe.MatchString(query) || unitConvCJKRe.MatchString(query)

	kind, keywordHits, matchedKinds := classify(lower, mathHit, unitHit)

	confidence := 0.5 + 0.25*float64(keywordHits)
	if kind == TaskCode {
		if mathHit {
			confidence += 0.15
		}
		if unitHit {
			confidence += 0.20
		}
	}
	confidence += 0.10 * float64(calcHits)

	reasoning := fmt.Sprintf("keyword match: %s", kind)
	switch {
	case isDomainKind(kind) && realTime:
		confidence += 0.15
		reasoning += " with real-time marker"
	case kind == TaskCode && realTime:
		// A live-data question that looks computational needs fresh
		// numbers, not arithmetic.
		kind = TaskResearch
		reasoning = "numeric query with real-time marker, routed to research"
	}

	if confidence > 1.0 {
		confidence = 1.0
	}

	decision := &RoutingDecision{
		Query:               query,
		PrimaryTask:         kind,
		Confidence:          confidence,
		Reasoning:           reasoning,
		Method:              MethodKeyword,
		ToolsNeeded:         toolsFor(kind, confidence),
		EstimatedDurationMS: kindDurations[kind],
	}

	if len(matchedKinds) >= 2 {
		decision.MultiIntent = true
		for _, extra := range matchedKinds {
			if extra == kind {
				continue
			}
			decision.ToolsNeeded = append(decision.ToolsNeeded, toolsFor(extra, confidence)...)
		}
	}

	return decision, nil
}

// classify applies the precedence order: domain lexicons, code signals,
// research signals, chat default. keywordHits counts lexicon matches for
// the winning kind only.
func classify(lower string, mathHit, unitHit bool) (TaskKind, int, []TaskKind) {
	var matchedKinds []TaskKind
	winner := TaskKind("")
	winnerHits := 0

	for _, domain := range domainOrder {
		hits := countMatches(lower, domain.keywords)
		if hits == 0 {
			continue
		}
		matchedKinds = append(matchedKinds, domain.kind)
		if winner == "" {
			winner = domain.kind
			winnerHits = hits
		}
	}
	if winner != "" {
		return winner, winnerHits, matchedKinds
	}

	codeHits := countMatches(lower, codeKeywords)
	if codeHits > 0 || mathHit || unitHit {
		return TaskCode, codeHits, nil
	}

	researchHits := countMatches(lower, researchKeywords)
	if researchHits > 0 {
		return TaskResearch, researchHits, nil
	}
	if strings.HasSuffix(strings.TrimSpace(lower), "?") ||
		strings.HasSuffix(strings.TrimSpace(lower), "？") {
		return TaskResearch, 0, nil
	}

	return TaskChat, 0, nil
}

// matchedTaskKinds reports every kind the lexicons and signal patterns
// detect in the query, in domain priority order.
func matchedTaskKinds(query string) []TaskKind {
	lower := strings.ToLower(query)

	var kinds []TaskKind
	for _, domain := range domainOrder {
		if countMatches(lower, domain.keywords) > 0 {
			kinds = append(kinds, domain.kind)
		}
	}
	if countMatches(lower, codeKeywords) > 0 || mathPatternRe.MatchString(query) ||
		unitConvRe.MatchString(query) || unitConvCJKRe.MatchString(query) {
		kinds = append(kinds, TaskCode)
	}
	if countMatches(lower, researchKeywords) > 0 {
		kinds = append(kinds, TaskResearch)
	}
	return kinds
}

func countMatches(lower string, keywords []string) int {
	hits := 0
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			hits++
		}
	}
	return hits
}

func isDomainKind(kind TaskKind) bool {
	switch kind {
	case TaskWeather, TaskFinance, TaskRouting, TaskRAG:
		return true
	}
	return false
}

func toolsFor(kind TaskKind, confidence float64) []ToolRecommendation {
	names := kindTools[kind]
	tools := make([]ToolRecommendation, len(names))
	for i, name := range names {
		tools[i] = ToolRecommendation{Name: name, Confidence: confidence}
	}
	return tools
}

var _ Router = (*KeywordRouter)(nil)
