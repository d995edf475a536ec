package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywords(t *testing.T) {
	kw := ExtractKeywords("The Graph and the graph: a DB is on it. Neo rocks, go go!")

	assert.True(t, kw.Has("graph"))
	assert.True(t, kw.Has("neo"))
	assert.True(t, kw.Has("rocks"))
	assert.False(t, kw.Has("the"), "stop word")
	assert.False(t, kw.Has("and"), "stop word")
	assert.False(t, kw.Has("db"), "too short")
	assert.False(t, kw.Has("go"), "too short")
	assert.Len(t, kw, 3)
}

func TestExtractKeywords_Empty(t *testing.T) {
	assert.Empty(t, ExtractKeywords(""))
	assert.Empty(t, ExtractKeywords("a an 42 the and"))
}

func TestJaccard(t *testing.T) {
	a := ExtractKeywords("alpha beta gamma delta")
	b := ExtractKeywords("gamma delta epsilon")

	assert.InDelta(t, 2.0/5.0, Jaccard(a, b), 1e-12)
	assert.Equal(t, 1.0, Jaccard(a, a))
	assert.Equal(t, 0.0, Jaccard(a, KeywordSet{}))
	assert.Equal(t, []string{"delta", "gamma"}, a.Intersect(b))
}

func TestExtractTags(t *testing.T) {
	content := "Notes #project-x and #area/work, again #project-x. Also #snake_case but not # alone"
	assert.Equal(t, []string{"project-x", "area/work", "snake_case"}, ExtractTags(content))
	assert.Empty(t, ExtractTags("no tags here"))
}

func TestClassifyDomain(t *testing.T) {
	name, ok := ClassifyDomain(ExtractKeywords("docker kubernetes monitoring"))
	assert.True(t, ok)
	assert.Equal(t, DomainDevOps, name)

	_, ok = ClassifyDomain(ExtractKeywords("docker recipes"))
	assert.False(t, ok, "one keyword is not enough")

	// component and design score equally for system_design and frontend; table order wins
	name, ok = ClassifyDomain(ExtractKeywords("component design"))
	assert.True(t, ok)
	assert.Equal(t, DomainSystemDesign, name)
}
