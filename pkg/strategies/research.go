package strategies

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/embedders"
	"github.com/benekli/minerva/pkg/llms"
	"github.com/benekli/minerva/pkg/scrape"
	"github.com/benekli/minerva/pkg/search"
	"github.com/benekli/minerva/pkg/utils"
)

const planPrompt = `Break the research question into %d or fewer focused web search queries. Respond with a JSON array of strings only.

Question: %s`

const researchSynthesisPrompt = `Write a Markdown research summary answering the question from the source excerpts below. Cite sources inline as [1], [2], etc. Note disagreements between sources. If the sources do not answer the question, say what is missing.

Question: %s

%s`

// maxExcerptChars bounds how much of each page reaches the synthesis prompt.
const maxExcerptChars = 3000

// truncateText cuts s to at most max bytes without splitting a UTF-8 rune.
func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// ResearchStrategy runs plan, search, scrape, score, synthesize. Partial
// success is the norm: failed searches and scrapes are skipped, and an
// empty source set still produces an explanatory summary.
type ResearchStrategy struct {
	cfg       *config.ResearchConfig
	manager   *llms.Manager
	searcher  search.Client
	fetcher   *scrape.Fetcher
	extractor *scrape.Extractor
	embedder  embedders.Embedder
	logger    *slog.Logger
}

// NewResearchStrategy builds the pipeline. The embedder is optional; without
// one the sources keep credibility order.
func NewResearchStrategy(cfg *config.ResearchConfig, manager *llms.Manager, searcher search.Client, embedder embedders.Embedder, logger *slog.Logger) (*ResearchStrategy, error) {
	if manager == nil {
		return nil, fmt.Errorf("completion manager is required")
	}
	if searcher == nil {
		return nil, fmt.Errorf("search client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ResearchStrategy{
		cfg:       cfg,
		manager:   manager,
		searcher:  searcher,
		fetcher:   scrape.NewFetcher(&cfg.Scrape, cfg.ScrapeTimeout.Duration()),
		extractor: scrape.NewExtractor(),
		embedder:  embedder,
		logger:    logger.With("strategy", "research"),
	}, nil
}

func (s *ResearchStrategy) Name() string { return "research" }

func (s *ResearchStrategy) Execute(ctx context.Context, req *Request) (*Outcome, error) {
	plan := s.plan(ctx, req.Query)

	results := s.searchAll(ctx, plan)
	candidates := dedupURLs(results, s.cfg.TopURLs)

	sources, texts := s.scrapeAll(ctx, candidates)

	if len(sources) == 0 {
		return &Outcome{Research: &ResearchResult{
			Query: req.Query,
			Plan:  plan,
			Summary: "No sources could be retrieved for this question. " +
				"The searches returned nothing reachable; try rephrasing or narrowing the query.",
		}}, nil
	}

	if s.embedder != nil && config.BoolValue(s.cfg.RerankEnabled, true) {
		sources, texts = s.rerank(ctx, req.Query, sources, texts)
	}

	summary, err := s.synthesize(ctx, req.Query, sources, texts)
	if err != nil {
		return nil, err
	}

	return &Outcome{Research: &ResearchResult{
		Query:   req.Query,
		Plan:    plan,
		Sources: sources,
		Summary: summary,
	}}, nil
}

// plan asks the LLM for subqueries; any failure falls back to the raw query.
func (s *ResearchStrategy) plan(ctx context.Context, query string) []string {
	response, err := s.manager.Complete(ctx, []llms.Message{
		llms.User(fmt.Sprintf(planPrompt, s.cfg.MaxSubqueries, query)),
	}, &llms.Options{
		Temperature:    config.Float64Ptr(0.3),
		ResponseFormat: "json",
	})
	if err != nil {
		s.logger.Warn("plan generation failed, using raw query", "error", err)
		return []string{query}
	}

	var subqueries []string
	if err := utils.UnmarshalLenient(response, &subqueries); err != nil || len(subqueries) == 0 {
		return []string{query}
	}
	if len(subqueries) > s.cfg.MaxSubqueries {
		subqueries = subqueries[:s.cfg.MaxSubqueries]
	}
	return subqueries
}

// searchAll fans out one search per subquery. Failures are skipped.
func (s *ResearchStrategy) searchAll(ctx context.Context, plan []string) []search.Result {
	var mu sync.Mutex
	var all []search.Result

	g, gctx := errgroup.WithContext(ctx)
	for _, subquery := range plan {
		subquery := subquery
		g.Go(func() error {
			searchCtx, cancel := context.WithTimeout(gctx, s.cfg.Search.Timeout.Duration())
			defer cancel()

			results, err := s.searcher.Search(searchCtx, subquery, s.cfg.Search.MaxResults)
			if err != nil {
				s.logger.Warn("search failed", "subquery", subquery, "error", err)
				return nil
			}

			mu.Lock()
			all = append(all, results...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return all
}

// dedupURLs keeps the first result per canonical host+path, up to limit.
func dedupURLs(results []search.Result, limit int) []search.Result {
	seen := make(map[string]bool)
	var out []search.Result

	for _, result := range results {
		key := canonicalURL(result.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, result)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func canonicalURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.ToLower(parsed.Host) + strings.TrimRight(parsed.Path, "/")
}

// scrapeAll fetches candidates under the worker pool, scoring credibility
// for each page that extracts. Returned slices are index-aligned.
func (s *ResearchStrategy) scrapeAll(ctx context.Context, candidates []search.Result) ([]Source, []string) {
	sem := semaphore.NewWeighted(int64(s.cfg.ScrapeWorkers))

	type scraped struct {
		source Source
		text   string
	}

	var mu sync.Mutex
	var pages []scraped

	var wg sync.WaitGroup
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(candidate search.Result) {
			defer wg.Done()
			defer sem.Release(1)

			fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.ScrapeTimeout.Duration())
			defer cancel()

			fetched, err := s.fetcher.Fetch(fetchCtx, candidate.URL)
			if err != nil {
				s.logger.Debug("fetch failed", "url", candidate.URL, "error", err)
				return
			}

			doc, err := s.extractor.Extract(candidate.URL, fetched.Body)
			if err != nil {
				s.logger.Debug("extraction failed", "url", candidate.URL, "error", err)
				return
			}

			title := doc.Title
			if title == "" {
				title = candidate.Title
			}
			score, details := scrape.ScoreCredibility(candidate.URL, title, doc.Text)

			mu.Lock()
			pages = append(pages, scraped{
				source: Source{
					URL:                candidate.URL,
					Title:              title,
					Snippet:            candidate.Snippet,
					CredibilityScore:   score,
					CredibilityDetails: details,
				},
				text: doc.Text,
			})
			mu.Unlock()
		}(candidate)
	}
	wg.Wait()

	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].source.CredibilityScore > pages[j].source.CredibilityScore
	})

	sources := make([]Source, len(pages))
	texts := make([]string, len(pages))
	for i, page := range pages {
		sources[i] = page.source
		texts[i] = page.text
	}
	return sources, texts
}

// rerank reorders sources by blending credibility with embedding similarity
// to the query. Every scraped source survives; the order only decides which
// pages feed synthesis first.
func (s *ResearchStrategy) rerank(ctx context.Context, query string, sources []Source, texts []string) ([]Source, []string) {
	reordered, reorderedTexts, err := s.semanticOrder(ctx, query, sources, texts)
	if err != nil {
		s.logger.Warn("semantic rerank failed, keeping credibility order", "error", err)
		return sources, texts
	}
	return reordered, reorderedTexts
}

func (s *ResearchStrategy) semanticOrder(ctx context.Context, query string, sources []Source, texts []string) ([]Source, []string, error) {
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	excerpts := make([]string, len(texts))
	for i, text := range texts {
		excerpts[i] = truncateText(text, maxExcerptChars)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, excerpts)
	if err != nil {
		return nil, nil, err
	}
	if len(vectors) != len(sources) {
		return nil, nil, fmt.Errorf("embedder returned %d vectors for %d sources", len(vectors), len(sources))
	}

	type ranked struct {
		source Source
		text   string
		score  float64
	}
	rankedSources := make([]ranked, len(sources))
	for i := range sources {
		blended := 0.5*sources[i].CredibilityScore + 0.5*cosineSimilarity(queryVec, vectors[i])
		rankedSources[i] = ranked{source: sources[i], text: texts[i], score: blended}
	}
	sort.SliceStable(rankedSources, func(i, j int) bool {
		return rankedSources[i].score > rankedSources[j].score
	})

	outSources := make([]Source, len(rankedSources))
	outTexts := make([]string, len(rankedSources))
	for i, r := range rankedSources {
		outSources[i] = r.source
		outTexts[i] = r.text
	}
	return outSources, outTexts, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// synthesize prompts with excerpts from the best-ranked sources. RerankTopK
// bounds how many pages reach the prompt; the result still cites only those.
func (s *ResearchStrategy) synthesize(ctx context.Context, query string, sources []Source, texts []string) (string, error) {
	limit := len(sources)
	if s.cfg.RerankTopK > 0 && limit > s.cfg.RerankTopK {
		limit = s.cfg.RerankTopK
	}

	var excerpts strings.Builder
	for i, source := range sources[:limit] {
		fmt.Fprintf(&excerpts, "[%d] %s (%s)\n%s\n\n", i+1, source.Title, source.URL, truncateText(texts[i], maxExcerptChars))
	}

	summary, err := s.manager.Complete(ctx, []llms.Message{
		llms.User(fmt.Sprintf(researchSynthesisPrompt, query, excerpts.String())),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("synthesis failed: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

var _ Strategy = (*ResearchStrategy)(nil)
