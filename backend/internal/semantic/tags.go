package semantic

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"vault-graph-sync/backend/internal/graph"
)

// MethodTag marks edges produced by the tag pass
const MethodTag = "tag_extraction"

// TagIndex maps each tag to the notes carrying it, in input order
func TagIndex(notes []graph.Note) map[string][]graph.Note {
	index := make(map[string][]graph.Note)
	for _, n := range notes {
		for _, tag := range ExtractTags(n.Content) {
			index[tag] = append(index[tag], n)
		}
	}
	return index
}

// RelateByTags writes a SHARES_TAG edge between every pair of notes sharing a tag.
// There is no threshold or cap. Write failures are logged and skipped.
func (b *Builder) RelateByTags(ctx context.Context, notes []graph.Note) (int, error) {
	index := TagIndex(notes)

	tags := make([]string, 0, len(index))
	for tag, tagged := range index {
		if len(tagged) > 1 {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)

	b.logger.Info("Extracted tags",
		zap.Int("unique_tags", len(index)),
		zap.Int("shared_tags", len(tags)),
	)

	written := 0
	for _, tag := range tags {
		tagged := index[tag]
		for i := 0; i < len(tagged); i++ {
			for j := i + 1; j < len(tagged); j++ {
				if err := ctx.Err(); err != nil {
					return written, err
				}
				if b.writeTagEdge(ctx, tag, tagged[i], tagged[j]) {
					written++
				}
			}
		}
	}

	b.logger.Info("Tag relationships created", zap.Int("relationships", written))
	return written, nil
}

// RelateTagsAgainst links each changed note to every other corpus note sharing one
// of its tags. Edges point from the lower path to the higher one.
func (b *Builder) RelateTagsAgainst(ctx context.Context, changed, corpus []graph.Note) (int, error) {
	if len(changed) == 0 {
		return 0, nil
	}

	isChanged := make(map[string]bool, len(changed))
	for _, n := range changed {
		isChanged[n.ID] = true
	}
	all := append([]graph.Note(nil), changed...)
	for _, n := range corpus {
		if !isChanged[n.ID] {
			all = append(all, n)
		}
	}
	index := TagIndex(all)

	written := 0
	seen := make(map[[2]string]bool)
	for _, n := range changed {
		for _, tag := range ExtractTags(n.Content) {
			for _, other := range index[tag] {
				if other.ID == n.ID {
					continue
				}
				from, to := n, other
				if to.Path < from.Path {
					from, to = to, from
				}
				key := [2]string{from.ID + "|" + to.ID, tag}
				if seen[key] {
					continue
				}
				seen[key] = true

				if err := ctx.Err(); err != nil {
					return written, err
				}
				if b.writeTagEdge(ctx, tag, from, to) {
					written++
				}
			}
		}
	}
	return written, nil
}

func (b *Builder) writeTagEdge(ctx context.Context, tag string, from, to graph.Note) bool {
	rel := graph.Relationship{
		FromID: from.ID,
		ToID:   to.ID,
		Type:   graph.RelSharesTag,
		Properties: map[string]any{
			graph.PropTag:    tag,
			graph.PropMethod: MethodTag,
		},
	}
	if _, err := b.writer.CreateRelationship(ctx, rel); err != nil {
		b.logger.Warn("Failed to create tag relationship",
			zap.String("tag", tag),
			zap.String("from", from.Path),
			zap.String("to", to.Path),
			zap.Error(err),
		)
		return false
	}
	return true
}
