package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/impactwatch/intel-cli/internal/cost"
	"github.com/impactwatch/intel-cli/internal/model"
	"github.com/impactwatch/intel-cli/internal/ratelimit"
	"github.com/impactwatch/intel-cli/internal/resilience"
	"github.com/impactwatch/intel-cli/pkg/perplexity"
)

// SourceName tags artifacts produced by the search-backed collector.
const SourceName = "perplexity_search"

const searchSystemPrompt = `You are a research assistant gathering evidence on how AI and automation affect a profession. Discuss current, concrete trends. Cite specific sources with URLs for every claim. Prefer authoritative sources: government statistics, peer-reviewed research, industry reports, and established news outlets over blogs or forums.`

// Config configures the search-backed collector.
type Config struct {
	APIKey      string
	Profession  string
	Model       string
	MaxTokens   int
	Temperature float64

	// TemplatePause is the pause between template iterations in multi-query
	// mode, independent of the rate limiter.
	TemplatePause time.Duration

	// Retry controls per-call retry of the search API.
	Retry resilience.RetryConfig
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 2048
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.2
	}
	if c.TemplatePause <= 0 {
		c.TemplatePause = time.Second
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: 2 * time.Second,
		}
	}
	return c
}

// SearchCollector implements Connector on top of the Perplexity search/answer
// API: it builds a category-aware query, issues one rate-limited call, and
// splits the cited narrative response into attributable artifacts.
type SearchCollector struct {
	client  perplexity.Client
	limiter *ratelimit.Registry
	costs   *cost.Tracker
	calc    *cost.Calculator
	titles  TitleResolver
	breaker *resilience.Breaker
	cfg     Config

	nowFunc func() time.Time
}

// New creates a SearchCollector. All collaborators are injected; none are
// package-level singletons.
func New(client perplexity.Client, limiter *ratelimit.Registry, costs *cost.Tracker, calc *cost.Calculator, titles TitleResolver, cfg Config) *SearchCollector {
	return &SearchCollector{
		client:  client,
		limiter: limiter,
		costs:   costs,
		calc:    calc,
		titles:  titles,
		breaker: resilience.NewBreaker(3, time.Minute),
		cfg:     cfg.withDefaults(),
		nowFunc: time.Now,
	}
}

// Name implements Connector.
func (c *SearchCollector) Name() string { return SourceName }

// ValidateConfig issues a cheap one-token round trip to confirm the API key
// is usable. It never returns an error; failures are logged and reported as
// false.
func (c *SearchCollector) ValidateConfig(ctx context.Context) bool {
	if c.cfg.APIKey == "" {
		zap.L().Warn("collector: no API key configured", zap.String("source", c.Name()))
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := c.limiter.Wait(ctx, c.Name()); err != nil {
		zap.L().Warn("collector: validation rate-limit wait failed", zap.Error(err))
		return false
	}

	maxTokens := 1
	_, err := c.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:     c.cfg.Model,
		Messages:  []perplexity.Message{{Role: "user", Content: "ping"}},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		zap.L().Warn("collector: config validation failed",
			zap.String("source", c.Name()),
			zap.Error(err),
		)
		return false
	}
	return true
}

// Collect implements Connector for a single query. When opts.Category has a
// template, the first template for that category is used; otherwise the raw
// query is combined with the timeframe.
func (c *SearchCollector) Collect(ctx context.Context, query string, maxResults int, opts Options) ([]model.Artifact, error) {
	if c.cfg.APIKey == "" {
		return nil, resilience.NewConfigError(c.Name(), fmt.Errorf("missing API key"))
	}

	final := c.buildQuery(query, opts)
	return c.collectOnce(ctx, final, maxResults, opts.Category)
}

func (c *SearchCollector) buildQuery(query string, opts Options) string {
	if query != "" {
		return FallbackQuery(query, c.cfg.Profession, opts.Timeframe)
	}
	if templates := TemplatesFor(opts.Category); len(templates) > 0 {
		return BuildQuery(templates[0], c.cfg.Profession, opts.Timeframe)
	}
	return FallbackQuery(string(opts.Category), c.cfg.Profession, opts.Timeframe)
}

// collectOnce performs one search call and maps the cited response to
// artifacts. maxResults <= 0 means unbounded.
func (c *SearchCollector) collectOnce(ctx context.Context, query string, maxResults int, category model.Category) ([]model.Artifact, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx, c.Name()); err != nil {
		return nil, err
	}

	retryCfg := c.cfg.Retry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = resilience.RetryLogger(c.Name(), "chat_completion")
	}
	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		r, err := c.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
			Model:       c.cfg.Model,
			Temperature: &c.cfg.Temperature,
			MaxTokens:   &c.cfg.MaxTokens,
			Messages: []perplexity.Message{
				{Role: "system", Content: searchSystemPrompt},
				{Role: "user", Content: query},
			},
		})
		if err != nil {
			return nil, resilience.NewSourceError(c.Name(), 0, err)
		}
		return r, nil
	})
	c.breaker.Record(err)
	if err != nil {
		return nil, err
	}

	c.costs.Record(c.Name(), resp.Usage.TotalTokens, c.calc.PerplexityQuery(resp.Usage.TotalTokens))

	artifacts := c.buildArtifacts(ctx, query, category, resp)
	if maxResults > 0 && len(artifacts) > maxResults {
		artifacts = artifacts[:maxResults]
	}

	zap.L().Info("collector: query complete",
		zap.String("query", query),
		zap.Int("artifacts", len(artifacts)),
		zap.Int("tokens", resp.Usage.TotalTokens),
	)
	return artifacts, nil
}

// citation is a normalized citation candidate.
type citation struct {
	URL   string
	Title string
	Date  string
}

// normalizeCitations merges the flat citation URL list with the richer
// search_results entries, de-duplicating by URL in first-seen order.
func normalizeCitations(resp *perplexity.ChatCompletionResponse) []citation {
	var out []citation
	seen := make(map[string]int)

	for _, sr := range resp.SearchResults {
		if sr.URL == "" {
			continue
		}
		if _, dup := seen[sr.URL]; dup {
			continue
		}
		seen[sr.URL] = len(out)
		out = append(out, citation{URL: sr.URL, Title: cleanTitle(sr.Title), Date: sr.Date})
	}

	for _, u := range resp.Citations {
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = len(out)
		out = append(out, citation{URL: u})
	}

	return out
}

// segmentContent splits the narrative into n contiguous slices along
// paragraph boundaries. When the narrative has fewer paragraphs than
// citations there is no reliable boundary, so every citation shares the full
// text. The mapping is positional and best-effort; it is not a provenance
// guarantee.
func segmentContent(content string, n int) []string {
	if n <= 1 {
		return []string{content}
	}

	var paragraphs []string
	for _, p := range strings.Split(content, "\n\n") {
		if t := strings.TrimSpace(p); t != "" {
			paragraphs = append(paragraphs, t)
		}
	}

	if len(paragraphs) < n {
		shared := make([]string, n)
		for i := range shared {
			shared[i] = content
		}
		return shared
	}

	out := make([]string, 0, n)
	base := len(paragraphs) / n
	rem := len(paragraphs) % n
	idx := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		out = append(out, strings.Join(paragraphs[idx:idx+size], "\n\n"))
		idx += size
	}
	return out
}

// buildArtifacts creates one artifact per citation, or a single synthetic
// artifact when the response carries no citations at all.
func (c *SearchCollector) buildArtifacts(ctx context.Context, query string, category model.Category, resp *perplexity.ChatCompletionResponse) []model.Artifact {
	now := c.nowFunc().UTC()
	content := resp.Content()
	citations := normalizeCitations(resp)

	if len(citations) == 0 {
		// The narrative is still evidence; don't drop it silently.
		pseudoURL := fmt.Sprintf("search://%d", now.Unix())
		a := model.Artifact{
			ID:          model.GenerateArtifactID(c.Name(), pseudoURL, now),
			URL:         pseudoURL,
			Title:       fallbackTitle(1, content),
			Content:     content,
			SourceType:  c.Name(),
			CollectedAt: now,
		}
		a.SetMeta(model.MetaQuery, query)
		a.SetMeta(model.MetaCategory, string(category))
		a.SetMeta(model.MetaCitationIndex, 0)
		a.SetMeta(model.MetaCitationCount, 0)
		a.SetMeta(model.MetaExtractionMethod, model.ExtractionFallback)
		a.SetMeta(model.MetaResponseID, resp.ID)
		return []model.Artifact{a}
	}

	segments := segmentContent(content, len(citations))

	artifacts := make([]model.Artifact, 0, len(citations))
	for i, cit := range citations {
		segment := segments[i]
		title, method := c.resolveTitle(ctx, cit, i+1, segment)

		a := model.Artifact{
			ID:          model.GenerateArtifactID(c.Name(), cit.URL, now),
			URL:         cit.URL,
			Title:       title,
			Content:     segment,
			SourceType:  c.Name(),
			CollectedAt: now,
		}
		a.SetMeta(model.MetaQuery, query)
		a.SetMeta(model.MetaCategory, string(category))
		a.SetMeta(model.MetaCitationIndex, i)
		a.SetMeta(model.MetaCitationCount, len(citations))
		a.SetMeta(model.MetaExtractionMethod, method)
		a.SetMeta(model.MetaResponseID, resp.ID)
		if cit.Date != "" {
			a.SetMeta("citation_date", cit.Date)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts
}

// resolveTitle picks the citation's own title, then a best-effort scrape of
// the target page, then a title derived from the associated content.
func (c *SearchCollector) resolveTitle(ctx context.Context, cit citation, index int, content string) (string, string) {
	if cit.Title != "" {
		return cit.Title, model.ExtractionCitation
	}

	if c.titles != nil {
		scrapeCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
		title, err := c.titles.Resolve(scrapeCtx, cit.URL)
		cancel()
		if err == nil && title != "" {
			return title, model.ExtractionScrapedTitle
		}
		if err != nil {
			zap.L().Debug("collector: title scrape failed",
				zap.String("url", cit.URL),
				zap.Error(err),
			)
		}
	}

	return fallbackTitle(index, content), model.ExtractionFallback
}

// fallbackTitle derives a readable title from the first sentence of the
// associated content, truncated and prefixed with the citation index.
func fallbackTitle(index int, content string) string {
	sentence := strings.TrimSpace(content)
	for _, sep := range []string{". ", "!\n", "?\n", "\n"} {
		if i := strings.Index(sentence, sep); i > 0 {
			sentence = sentence[:i]
			break
		}
	}
	sentence = truncate(sentence, 80)
	if sentence == "" {
		sentence = "untitled search result"
	}
	return fmt.Sprintf("Analysis %d: %s", index, sentence)
}
