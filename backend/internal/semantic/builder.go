package semantic

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"vault-graph-sync/backend/internal/constants"
	"vault-graph-sync/backend/internal/graph"
	"vault-graph-sync/backend/pkg/config"
)

// MethodSemantic marks edges produced by keyword analysis
const MethodSemantic = "semantic_analysis"

// Fixed confidences per relationship rule
const (
	confidenceHighlyRelated  = 0.9
	confidenceRelatedTo      = 0.7
	confidenceContains       = 0.8
	confidenceSameDomain     = 0.6
	confidenceCrossDomain    = 0.7
	confidenceEnhances       = 0.6
	confidenceLooselyRelated = 0.5
	confidenceTemporal       = 0.9
)

// RelationshipWriter is the slice of graph.Store the builder writes through
type RelationshipWriter interface {
	CreateRelationship(ctx context.Context, rel graph.Relationship) (string, error)
}

// Builder infers relationships between notes from their keywords, titles and timestamps
type Builder struct {
	writer RelationshipWriter
	cfg    config.Relationships
	logger *zap.Logger
}

// NewBuilder creates a builder writing edges through w
func NewBuilder(w RelationshipWriter, cfg config.Relationships, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{writer: w, cfg: cfg, logger: log}
}

// WithLogger returns a copy of the builder logging to log
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	if log == nil {
		return b
	}
	clone := *b
	clone.logger = log
	return &clone
}

// Config returns the tunables in use
func (b *Builder) Config() config.Relationships {
	return b.cfg
}

type candidate struct {
	relType    graph.RelType
	confidence float64
}

// analyzed is a note with its keywords extracted once
type analyzed struct {
	note     graph.Note
	keywords KeywordSet
}

func analyze(notes []graph.Note) []analyzed {
	out := make([]analyzed, len(notes))
	for i, n := range notes {
		out[i] = analyzed{note: n, keywords: ExtractKeywords(n.Content)}
	}
	return out
}

// run tracks the edges written during one pass against the global cap
type run struct {
	written int
	byType  map[graph.RelType]int
}

func (r *run) capped(limit int) bool {
	return r.written >= limit
}

// AnalyzeAndRelate compares every pair of notes and writes the strongest candidates.
// It returns the number of edges written. Write failures are logged and skipped.
func (b *Builder) AnalyzeAndRelate(ctx context.Context, notes []graph.Note) (int, error) {
	if len(notes) == 0 {
		return 0, nil
	}
	start := time.Now()
	items := analyze(notes)
	r := &run{byType: make(map[graph.RelType]int)}

	b.logger.Info("Analyzing notes for semantic relationships",
		zap.Int("notes", len(items)),
		zap.Int("pairs", len(items)*(len(items)-1)/2),
	)

pairs:
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if err := ctx.Err(); err != nil {
				return r.written, err
			}
			if r.capped(b.cfg.MaxTotalRelationships) {
				b.logger.Warn("Relationship cap reached, stopping analysis",
					zap.Int("max_total_relationships", b.cfg.MaxTotalRelationships))
				break pairs
			}
			b.relatePair(ctx, items[i], items[j], r)
		}
	}

	b.logSummary(r, time.Since(start))
	return r.written, nil
}

// AnalyzeAgainst relates changed notes to each other and to the rest of the corpus.
// Pairs of unchanged notes are not revisited. Each edge points from the lower path
// to the higher one.
func (b *Builder) AnalyzeAgainst(ctx context.Context, changed, corpus []graph.Note) (int, error) {
	if len(changed) == 0 {
		return 0, nil
	}
	start := time.Now()
	changedItems := analyze(changed)

	isChanged := make(map[string]bool, len(changed))
	for _, n := range changed {
		isChanged[n.ID] = true
	}
	var rest []graph.Note
	for _, n := range corpus {
		if !isChanged[n.ID] {
			rest = append(rest, n)
		}
	}
	restItems := analyze(rest)
	r := &run{byType: make(map[graph.RelType]int)}

	b.logger.Debug("Analyzing changed notes against corpus",
		zap.Int("changed", len(changedItems)),
		zap.Int("corpus", len(restItems)),
	)

	for i, a := range changedItems {
		others := append(append([]analyzed(nil), changedItems[i+1:]...), restItems...)
		for _, other := range others {
			if err := ctx.Err(); err != nil {
				return r.written, err
			}
			if r.capped(b.cfg.MaxTotalRelationships) {
				b.logSummary(r, time.Since(start))
				return r.written, nil
			}
			from, to := byPath(a, other)
			b.relatePair(ctx, from, to, r)
		}
	}

	b.logSummary(r, time.Since(start))
	return r.written, nil
}

// byPath orders a pair the way a full pass over path-sorted notes would,
// so incremental edges merge with the ones written by AnalyzeAndRelate
func byPath(a, c analyzed) (analyzed, analyzed) {
	if c.note.Path < a.note.Path {
		return c, a
	}
	return a, c
}

// relatePair scores one pair and writes up to MaxRelationshipsPerPair edges from a to b
func (b *Builder) relatePair(ctx context.Context, a, c analyzed, r *run) {
	if len(a.keywords) == 0 || len(c.keywords) == 0 {
		return
	}

	similarity := Jaccard(a.keywords, c.keywords)
	candidates := b.candidates(a.note, c.note, a.keywords, c.keywords, similarity)
	if len(candidates) == 0 {
		return
	}

	overlap := a.keywords.Intersect(c.keywords)
	limit := b.cfg.MaxRelationshipsPerPair
	if len(candidates) < limit {
		limit = len(candidates)
	}

	for _, cand := range candidates[:limit] {
		if r.capped(b.cfg.MaxTotalRelationships) {
			return
		}
		rel := graph.Relationship{
			FromID: a.note.ID,
			ToID:   c.note.ID,
			Type:   cand.relType,
			Properties: map[string]any{
				graph.PropConfidence:      cand.confidence,
				graph.PropSimilarity:      similarity,
				graph.PropMethod:          MethodSemantic,
				graph.PropKeywordsOverlap: overlap,
			},
		}
		if _, err := b.writer.CreateRelationship(ctx, rel); err != nil {
			b.logger.Warn("Failed to create relationship",
				zap.String("from", a.note.Path),
				zap.String("to", c.note.Path),
				zap.String("type", string(cand.relType)),
				zap.Error(err),
			)
			continue
		}
		r.written++
		r.byType[cand.relType]++
		b.logger.Debug("Relationship created",
			zap.String("from", a.note.Title),
			zap.String("to", c.note.Title),
			zap.String("type", string(cand.relType)),
			zap.Float64("confidence", cand.confidence),
			zap.Float64("similarity", similarity),
		)
	}
}

// candidates returns the relationship candidates for a pair, strongest first.
// The lexical rule is gated by MinSimilarity and MinConfidence; temporal proximity is not.
func (b *Builder) candidates(a, c graph.Note, ka, kc KeywordSet, similarity float64) []candidate {
	var out []candidate
	if similarity >= b.cfg.MinSimilarity {
		if cand, ok := b.classify(a, c, ka, kc, similarity); ok && cand.confidence > b.cfg.MinConfidence {
			out = append(out, cand)
		}
	}
	if temporallyClose(a.Modified, c.Modified) {
		out = append(out, candidate{relType: graph.RelTemporalProximity, confidence: confidenceTemporal})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].confidence > out[j].confidence })
	return out
}

// classify applies the ordered rules; the first match wins
func (b *Builder) classify(a, c graph.Note, ka, kc KeywordSet, similarity float64) (candidate, bool) {
	switch {
	case similarity > b.cfg.HighlyRelated:
		return candidate{graph.RelHighlyRelated, confidenceHighlyRelated}, true
	case similarity > b.cfg.RelatedTo:
		return candidate{graph.RelRelatedTo, confidenceRelatedTo}, true
	}

	t1 := strings.ToLower(a.Title)
	t2 := strings.ToLower(c.Title)
	if strings.Contains(t1, t2) || strings.Contains(t2, t1) {
		return candidate{graph.RelContains, confidenceContains}, true
	}

	d1, ok1 := ClassifyDomain(ka)
	d2, ok2 := ClassifyDomain(kc)
	if ok1 && ok2 {
		if d1 == d2 && similarity > b.cfg.SameDomain {
			return candidate{graph.RelSameDomain, confidenceSameDomain}, true
		}
		if d1 != d2 && similarity > b.cfg.CrossDomain {
			return candidate{graph.RelCrossDomain, confidenceCrossDomain}, true
		}
	}

	if mentionsEnhancement(t1) || mentionsEnhancement(t2) {
		return candidate{graph.RelEnhances, confidenceEnhances}, true
	}

	if similarity > b.cfg.LooselyRelated {
		return candidate{graph.RelLooselyRelated, confidenceLooselyRelated}, true
	}
	return candidate{}, false
}

func mentionsEnhancement(title string) bool {
	return strings.Contains(title, "enhance") || strings.Contains(title, "improve")
}

func temporallyClose(a, c time.Time) bool {
	diff := a.Unix() - c.Unix()
	if diff < 0 {
		diff = -diff
	}
	return diff < int64(constants.TemporalWindow/time.Second)
}

func (b *Builder) logSummary(r *run, elapsed time.Duration) {
	fields := []zap.Field{
		zap.Int("relationships", r.written),
		zap.Duration("elapsed", elapsed),
	}
	for t, n := range r.byType {
		fields = append(fields, zap.Int(strings.ToLower(string(t)), n))
	}
	b.logger.Info("Semantic relationship analysis complete", fields...)
}
