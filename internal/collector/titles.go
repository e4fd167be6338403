package collector

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// TitleResolver fetches a human-readable title for a cited URL. It is a
// best-effort enrichment: failures are non-fatal and callers fall back to a
// derived title.
type TitleResolver interface {
	Resolve(ctx context.Context, url string) (string, error)
}

// HTTPTitleResolver scrapes the <title> or og:title tag from the target page
// with a short timeout.
type HTTPTitleResolver struct {
	client *http.Client
}

// NewHTTPTitleResolver creates a resolver with the given timeout (defaults
// to 8s when zero).
func NewHTTPTitleResolver(timeout time.Duration) *HTTPTitleResolver {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &HTTPTitleResolver{
		client: &http.Client{Timeout: timeout},
	}
}

var (
	titleRe   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	ogTitleRe = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:title["'][^>]+content=["']([^"']+)["']`)
)

// Resolve fetches the URL and extracts og:title, falling back to <title>.
func (h *HTTPTitleResolver) Resolve(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrap(err, "titles: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; IntelBot/1.0)")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "titles: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", eris.Errorf("titles: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return "", eris.Wrap(err, "titles: read body")
	}

	if m := ogTitleRe.FindSubmatch(body); len(m) > 1 {
		if t := cleanTitle(string(m[1])); t != "" {
			return t, nil
		}
	}
	if m := titleRe.FindSubmatch(body); len(m) > 1 {
		if t := cleanTitle(string(m[1])); t != "" {
			return t, nil
		}
	}
	return "", eris.New("titles: no title tag found")
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

func cleanTitle(raw string) string {
	t := entityReplacer.Replace(raw)
	t = strings.Join(strings.Fields(t), " ")
	return strings.TrimSpace(t)
}
