package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateArtifactID(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	id1 := GenerateArtifactID("perplexity_search", "https://example.com/report", at)
	id2 := GenerateArtifactID("perplexity_search", "https://example.com/report", at)
	assert.Equal(t, id1, id2, "same source+url+timestamp must be stable")

	id3 := GenerateArtifactID("perplexity_search", "https://example.com/other", at)
	assert.NotEqual(t, id1, id3, "different urls must not collide")

	id4 := GenerateArtifactID("perplexity_search", "https://example.com/report", at.Add(time.Second))
	assert.NotEqual(t, id1, id4, "different seconds must be distinguishable")

	assert.Contains(t, id1, "perplexity_search-")
}

func TestSetMeta(t *testing.T) {
	var a Artifact
	a.SetMeta(MetaCitationIndex, 2)
	a.SetMeta(MetaQuery, "AI replacing paralegals 2026")

	assert.Equal(t, 2, a.Metadata[MetaCitationIndex])
	assert.Equal(t, "AI replacing paralegals 2026", a.Metadata[MetaQuery])
}

func TestCategoryValid(t *testing.T) {
	for _, c := range AllCategories() {
		assert.True(t, c.Valid(), string(c))
	}
	assert.False(t, Category("automation").Valid())
	assert.False(t, Category("").Valid())
}

func TestReliabilityCredibilityValid(t *testing.T) {
	assert.True(t, ReliabilityA.Valid())
	assert.True(t, ReliabilityF.Valid())
	assert.False(t, Reliability("G").Valid())
	assert.False(t, Reliability("a").Valid())

	assert.True(t, Credibility(1).Valid())
	assert.True(t, Credibility(6).Valid())
	assert.False(t, Credibility(0).Valid())
	assert.False(t, Credibility(7).Valid())
}
