package collector

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impactwatch/intel-cli/internal/cost"
	"github.com/impactwatch/intel-cli/internal/model"
	"github.com/impactwatch/intel-cli/internal/ratelimit"
	"github.com/impactwatch/intel-cli/internal/resilience"
	"github.com/impactwatch/intel-cli/pkg/perplexity"
)

// fakeSearch returns canned responses (or errors) in call order, repeating
// the last entry once exhausted.
type fakeSearch struct {
	responses []*perplexity.ChatCompletionResponse
	errs      []error
	calls     int
	queries   []string
}

func (f *fakeSearch) ChatCompletion(_ context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	i := f.calls
	f.calls++
	f.queries = append(f.queries, req.Messages[len(req.Messages)-1].Content)

	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if len(f.responses) == 0 {
		return &perplexity.ChatCompletionResponse{}, nil
	}
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

type fakeTitles struct {
	title string
	err   error
	calls int
}

func (f *fakeTitles) Resolve(context.Context, string) (string, error) {
	f.calls++
	return f.title, f.err
}

func respWithCitations(content string, results ...perplexity.SearchResult) *perplexity.ChatCompletionResponse {
	return &perplexity.ChatCompletionResponse{
		ID:            "resp-1",
		Choices:       []perplexity.Choice{{Message: perplexity.Message{Role: "assistant", Content: content}}},
		Usage:         perplexity.Usage{TotalTokens: 100},
		SearchResults: results,
	}
}

func newTestCollector(client perplexity.Client, titles TitleResolver) *SearchCollector {
	c := New(
		client,
		ratelimit.NewRegistry(map[string]int{SourceName: 600000}),
		cost.NewTracker(),
		cost.NewCalculator(cost.DefaultRates()),
		titles,
		Config{
			APIKey:        "test-key",
			Profession:    "paralegal",
			TemplatePause: time.Millisecond,
			Retry:         resilience.RetryConfig{MaxAttempts: 1},
		},
	)
	c.nowFunc = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestCollectCitationToArtifactMapping(t *testing.T) {
	content := "First paragraph about displacement.\n\nSecond paragraph about tooling.\n\nThird paragraph about outlook."
	fake := &fakeSearch{responses: []*perplexity.ChatCompletionResponse{
		respWithCitations(content,
			perplexity.SearchResult{URL: "https://a.example/1", Title: "Report One"},
			perplexity.SearchResult{URL: "https://b.example/2", Title: "Report Two"},
			perplexity.SearchResult{URL: "https://c.example/3", Title: "Report Three"},
		),
	}}
	c := newTestCollector(fake, nil)

	artifacts, err := c.Collect(context.Background(), "", 0, Options{
		Category:  model.CategoryReplace,
		Timeframe: "2026",
	})
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	for i, a := range artifacts {
		assert.Equal(t, i, a.Metadata[model.MetaCitationIndex])
		assert.Equal(t, 3, a.Metadata[model.MetaCitationCount])
		assert.Equal(t, model.ExtractionCitation, a.Metadata[model.MetaExtractionMethod])
		assert.Equal(t, SourceName, a.SourceType)
		assert.Equal(t, "resp-1", a.Metadata[model.MetaResponseID])
		assert.NotEmpty(t, a.ID)
	}
	assert.Equal(t, "Report One", artifacts[0].Title)
	assert.Equal(t, "First paragraph about displacement.", artifacts[0].Content)
	assert.Equal(t, "Third paragraph about outlook.", artifacts[2].Content)
}

func TestCollectZeroCitationsYieldsSyntheticArtifact(t *testing.T) {
	fake := &fakeSearch{responses: []*perplexity.ChatCompletionResponse{
		respWithCitations("A narrative with no cited sources. More detail follows."),
	}}
	c := newTestCollector(fake, nil)

	artifacts, err := c.Collect(context.Background(), "", 0, Options{Category: model.CategoryGeneral})
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	a := artifacts[0]
	assert.True(t, strings.HasPrefix(a.URL, "search://"), a.URL)
	assert.Equal(t, model.ExtractionFallback, a.Metadata[model.MetaExtractionMethod])
	assert.Equal(t, 0, a.Metadata[model.MetaCitationCount])
	assert.Contains(t, a.Title, "Analysis 1:")
	assert.Equal(t, "A narrative with no cited sources. More detail follows.", a.Content)
}

func TestCollectSharesContentWhenNoParagraphBoundary(t *testing.T) {
	content := "One dense paragraph citing everything at once."
	fake := &fakeSearch{responses: []*perplexity.ChatCompletionResponse{
		respWithCitations(content,
			perplexity.SearchResult{URL: "https://a.example", Title: "A"},
			perplexity.SearchResult{URL: "https://b.example", Title: "B"},
		),
	}}
	c := newTestCollector(fake, nil)

	artifacts, err := c.Collect(context.Background(), "", 0, Options{Category: model.CategoryAugment})
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, content, artifacts[0].Content)
	assert.Equal(t, content, artifacts[1].Content)
}

func TestCollectTitleResolutionChain(t *testing.T) {
	content := "Paragraph one is here.\n\nParagraph two is here."

	t.Run("scraped_title", func(t *testing.T) {
		fake := &fakeSearch{responses: []*perplexity.ChatCompletionResponse{
			respWithCitations(content, perplexity.SearchResult{URL: "https://no-title.example"}),
		}}
		titles := &fakeTitles{title: "Scraped Headline"}
		c := newTestCollector(fake, titles)

		artifacts, err := c.Collect(context.Background(), "", 0, Options{Category: model.CategoryReplace})
		require.NoError(t, err)
		require.Len(t, artifacts, 1)
		assert.Equal(t, "Scraped Headline", artifacts[0].Title)
		assert.Equal(t, model.ExtractionScrapedTitle, artifacts[0].Metadata[model.MetaExtractionMethod])
		assert.Equal(t, 1, titles.calls)
	})

	t.Run("fallback_title", func(t *testing.T) {
		fake := &fakeSearch{responses: []*perplexity.ChatCompletionResponse{
			respWithCitations(content, perplexity.SearchResult{URL: "https://no-title.example"}),
		}}
		titles := &fakeTitles{err: eris.New("timeout")}
		c := newTestCollector(fake, titles)

		artifacts, err := c.Collect(context.Background(), "", 0, Options{Category: model.CategoryReplace})
		require.NoError(t, err)
		require.Len(t, artifacts, 1)
		assert.Equal(t, "Analysis 1: Paragraph one is here", artifacts[0].Title)
		assert.Equal(t, model.ExtractionFallback, artifacts[0].Metadata[model.MetaExtractionMethod])
	})
}

func TestCollectMissingAPIKey(t *testing.T) {
	c := newTestCollector(&fakeSearch{}, nil)
	c.cfg.APIKey = ""

	_, err := c.Collect(context.Background(), "q", 0, Options{})
	require.Error(t, err)
	assert.True(t, resilience.IsConfigError(err))

	_, err = c.CollectMulti(context.Background(), model.CategoryReplace, "2026", 5, nil)
	require.Error(t, err)
	assert.True(t, resilience.IsConfigError(err))
}

func TestCollectUsesConfiguredRateLimit(t *testing.T) {
	fake := &fakeSearch{responses: []*perplexity.ChatCompletionResponse{
		respWithCitations("A paragraph.", perplexity.SearchResult{URL: "https://a.example", Title: "A"}),
	}}
	c := newTestCollector(fake, nil)

	// The registry is keyed by the collector's source name, so back-to-back
	// collections run at the configured rate instead of the lazy default.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	for i := 0; i < 3; i++ {
		_, err := c.Collect(ctx, "displacement outlook", 0, Options{Category: model.CategoryReplace})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, fake.calls)
}

func TestCollectMaxResultsBound(t *testing.T) {
	content := "P1.\n\nP2.\n\nP3.\n\nP4."
	fake := &fakeSearch{responses: []*perplexity.ChatCompletionResponse{
		respWithCitations(content,
			perplexity.SearchResult{URL: "https://a.example", Title: "A"},
			perplexity.SearchResult{URL: "https://b.example", Title: "B"},
			perplexity.SearchResult{URL: "https://c.example", Title: "C"},
			perplexity.SearchResult{URL: "https://d.example", Title: "D"},
		),
	}}
	c := newTestCollector(fake, nil)

	artifacts, err := c.Collect(context.Background(), "", 2, Options{Category: model.CategoryReplace})
	require.NoError(t, err)
	assert.Len(t, artifacts, 2)
}

func TestValidateConfig(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		c := newTestCollector(&fakeSearch{responses: []*perplexity.ChatCompletionResponse{{}}}, nil)
		assert.True(t, c.ValidateConfig(context.Background()))
	})

	t.Run("missing_key", func(t *testing.T) {
		c := newTestCollector(&fakeSearch{}, nil)
		c.cfg.APIKey = ""
		assert.False(t, c.ValidateConfig(context.Background()))
	})

	t.Run("upstream_failure", func(t *testing.T) {
		c := newTestCollector(&fakeSearch{errs: []error{eris.New("401 unauthorized")}}, nil)
		assert.False(t, c.ValidateConfig(context.Background()))
	})
}

func TestSegmentContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		n       int
		want    []string
	}{
		{
			name:    "single_citation_gets_all",
			content: "A.\n\nB.",
			n:       1,
			want:    []string{"A.\n\nB."},
		},
		{
			name:    "even_split",
			content: "A.\n\nB.\n\nC.\n\nD.",
			n:       2,
			want:    []string{"A.\n\nB.", "C.\n\nD."},
		},
		{
			name:    "remainder_goes_to_early_slices",
			content: "A.\n\nB.\n\nC.",
			n:       2,
			want:    []string{"A.\n\nB.", "C."},
		},
		{
			name:    "fewer_paragraphs_than_citations_shares_all",
			content: "Only one paragraph.",
			n:       3,
			want:    []string{"Only one paragraph.", "Only one paragraph.", "Only one paragraph."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, segmentContent(tt.content, tt.n))
		})
	}
}

func TestNormalizeCitations(t *testing.T) {
	resp := &perplexity.ChatCompletionResponse{
		Citations: []string{"https://a.example", "https://c.example", "https://a.example", ""},
		SearchResults: []perplexity.SearchResult{
			{URL: "https://a.example", Title: "A Title", Date: "2026-01-01"},
			{URL: "https://b.example", Title: "B Title"},
			{URL: "https://b.example", Title: "B Duplicate"},
		},
	}

	cits := normalizeCitations(resp)
	require.Len(t, cits, 3)
	assert.Equal(t, "https://a.example", cits[0].URL)
	assert.Equal(t, "A Title", cits[0].Title)
	assert.Equal(t, "2026-01-01", cits[0].Date)
	assert.Equal(t, "https://b.example", cits[1].URL)
	// Flat-list-only URL comes last, without a title.
	assert.Equal(t, "https://c.example", cits[2].URL)
	assert.Empty(t, cits[2].Title)
}

func TestFallbackTitle(t *testing.T) {
	assert.Equal(t, "Analysis 2: Short sentence", fallbackTitle(2, "Short sentence. And more."))
	assert.Equal(t, "Analysis 1: untitled search result", fallbackTitle(1, "   "))

	long := strings.Repeat("x", 200)
	got := fallbackTitle(1, long)
	assert.LessOrEqual(t, len(got), len("Analysis 1: ")+80)

	// Multibyte content must not be cut mid-rune.
	wide := strings.Repeat("自動化", 40)
	got = fallbackTitle(1, wide)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), len("Analysis 1: ")+80)
}
