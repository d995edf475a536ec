package semantic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-graph-sync/backend/internal/graph"
	"vault-graph-sync/backend/pkg/config"
)

func TestRelateByTags_AllPairs(t *testing.T) {
	notes := []graph.Note{
		note("a", "A", "kickoff #project-x", base),
		note("b", "B", "status for #project-x and #ops", base),
		note("c", "C", "#project-x retro, #project-x again", base),
		note("d", "D", "#ops only", base),
		note("e", "E", "nothing tagged", base),
	}
	store := seed(t, notes...)
	b := NewBuilder(store, config.DefaultRelationships(), nil)

	n, err := b.RelateByTags(context.Background(), notes)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	var projectX [][2]string
	for _, rel := range store.Relationships(graph.RelSharesTag) {
		assert.Equal(t, MethodTag, rel.Properties[graph.PropMethod])
		assert.NotContains(t, rel.Properties, graph.PropConfidence)
		if rel.Properties[graph.PropTag] == "project-x" {
			projectX = append(projectX, [2]string{rel.FromID, rel.ToID})
		}
	}
	assert.ElementsMatch(t, [][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}}, projectX)
}

func TestRelateByTags_NoSharedTags(t *testing.T) {
	notes := []graph.Note{
		note("a", "A", "#one", base),
		note("b", "B", "#two", base.Add(time.Minute)),
	}
	store := seed(t, notes...)

	n, err := NewBuilder(store, config.DefaultRelationships(), nil).RelateByTags(context.Background(), notes)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.Relationships())
}

func TestRelateByTags_WriteFailureIsSkipped(t *testing.T) {
	notes := []graph.Note{
		note("a", "A", "#t", base),
		note("b", "B", "#t", base),
		note("c", "C", "#t", base),
	}
	store := seed(t, notes...)
	store.FailRelationship = func(rel graph.Relationship) error {
		if rel.FromID == "a" && rel.ToID == "b" {
			return errors.New("boom")
		}
		return nil
	}

	n, err := NewBuilder(store, config.DefaultRelationships(), nil).RelateByTags(context.Background(), notes)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTagIndex(t *testing.T) {
	notes := []graph.Note{
		note("a", "A", "#x #y", base),
		note("b", "B", "#y", base),
	}
	index := TagIndex(notes)
	require.Len(t, index, 2)
	assert.Len(t, index["x"], 1)
	assert.Len(t, index["y"], 2)
	assert.Equal(t, "a", index["y"][0].ID)
}

func TestRelateTagsAgainst(t *testing.T) {
	notes := []graph.Note{
		note("a", "A", "#x", base),
		note("b", "B", "#x #y", base),
		note("c", "C", "#x", base),
		note("d", "D", "#y", base),
	}
	store := seed(t, notes...)
	b := NewBuilder(store, config.DefaultRelationships(), nil)

	// c changed: it pairs with a and b over #x, and nothing else is revisited
	n, err := b.RelateTagsAgainst(context.Background(), notes[2:3], notes)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var pairs [][2]string
	for _, rel := range store.Relationships(graph.RelSharesTag) {
		pairs = append(pairs, [2]string{rel.FromID, rel.ToID})
	}
	assert.ElementsMatch(t, [][2]string{{"a", "c"}, {"b", "c"}}, pairs)
}

func TestRelateTagsAgainst_ChangedPairsOnce(t *testing.T) {
	notes := []graph.Note{
		note("a", "A", "#x", base),
		note("b", "B", "#x", base),
	}
	store := seed(t, notes...)

	n, err := NewBuilder(store, config.DefaultRelationships(), nil).RelateTagsAgainst(context.Background(), notes, notes)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
