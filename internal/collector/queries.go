package collector

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/impactwatch/intel-cli/internal/model"
)

// maxQueryLen bounds the assembled query string to respect upstream limits.
const maxQueryLen = 360

// truncate cuts s to at most max bytes without splitting a UTF-8 rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// queryTemplates holds category-specific query phrasings. Each template takes
// the profession first and the timeframe second.
var queryTemplates = map[model.Category][]string{
	model.CategoryReplace: {
		"AI and automation replacing %s jobs %s",
		"%s tasks fully automated by AI %s",
		"%s roles eliminated or displaced by automation %s",
		"will AI replace %s %s",
	},
	model.CategoryAugment: {
		"AI tools augmenting %s productivity %s",
		"how %s professionals use AI copilots at work %s",
		"%s working alongside AI assistants %s",
		"AI-assisted workflows for %s %s",
	},
	model.CategoryNewTasks: {
		"new job tasks created by AI adoption for %s %s",
		"emerging %s roles and responsibilities from AI %s",
		"AI creating new work for %s %s",
	},
	model.CategoryHumanOnly: {
		"%s tasks AI cannot automate %s",
		"human-only skills of %s in the AI era %s",
		"why %s judgment and relationships resist automation %s",
	},
	model.CategoryGeneral: {
		"impact of AI and automation on the %s profession %s",
		"%s profession outlook under AI and automation %s",
	},
}

// TemplatesFor returns the query templates for a category. The general
// category falls back to every known template across categories so a broad
// sweep covers all impact angles.
func TemplatesFor(category model.Category) []string {
	if category == model.CategoryGeneral {
		var all []string
		for _, c := range model.AllCategories() {
			all = append(all, queryTemplates[c]...)
		}
		return all
	}
	return queryTemplates[category]
}

// BuildQuery interpolates profession and timeframe into a template and
// appends the fixed context keywords, truncating to maxQueryLen.
func BuildQuery(template, profession, timeframe string) string {
	q := fmt.Sprintf(template, profession, timeframe)
	q = strings.TrimSpace(q) + " " + profession + " industry workforce"
	return truncate(q, maxQueryLen)
}

// FallbackQuery assembles "{base_query} {timeframe}" for categories without
// a template (or when the caller supplies its own query text).
func FallbackQuery(baseQuery, profession, timeframe string) string {
	q := strings.TrimSpace(baseQuery + " " + timeframe)
	q = q + " " + profession + " industry workforce"
	return truncate(q, maxQueryLen)
}
