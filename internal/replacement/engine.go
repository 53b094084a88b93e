package replacement

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/chem-advisor/internal/config"
	"github.com/sells-group/chem-advisor/internal/model"
)

// Engine combines the chemical, functional and performance engines with the
// availability, cost and sustainability heuristics into one weighted score.
type Engine struct {
	weights        config.ReplacementWeights
	maxConcurrency int

	chemical    ChemicalSimilarityEngine
	functional  FunctionalCompatibilityEngine
	performance PerformanceMatchingEngine
}

// NewEngine creates an Engine from cfg. Zero weights fall back to the defaults.
func NewEngine(cfg config.ReplacementConfig) *Engine {
	w := cfg.Weights
	if WeightSum(w) <= 0 {
		w = DefaultWeights()
	}
	conc := cfg.MaxConcurrency
	if conc <= 0 {
		conc = 1
	}
	return &Engine{weights: w, maxConcurrency: conc}
}

// ScoreReplacements scores candidates with the default configuration.
func ScoreReplacements(original model.Product, candidates []model.Product, criteria model.ReplacementCriteria, req model.ReplacementRequest) []model.ReplacementCandidate {
	out, _ := NewEngine(DefaultConfig()).GenerateCandidates(context.Background(), original, candidates, criteria, req)
	return out
}

// GenerateCandidates scores every non-excluded candidate and returns them
// sorted by overall score, highest first. Candidates with equal scores keep
// their input order. The only error is context cancellation.
func (e *Engine) GenerateCandidates(ctx context.Context, original model.Product, candidates []model.Product, criteria model.ReplacementCriteria, req model.ReplacementRequest) ([]model.ReplacementCandidate, error) {
	log := zap.L().With(zap.String("request_id", req.ID), zap.String("original", original.Name))

	if len(candidates) == 0 {
		return []model.ReplacementCandidate{}, nil
	}

	scored := make([]*model.ReplacementCandidate, len(candidates))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)
	for i := range candidates {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			if isExcluded(candidates[i], criteria.ExcludedSubstances) {
				return nil
			}
			c := e.ScoreCandidate(original, candidates[i], criteria)
			scored[i] = &c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "replacement: score candidates")
	}

	results := make([]model.ReplacementCandidate, 0, len(candidates))
	for _, c := range scored {
		if c != nil {
			results = append(results, *c)
		}
	}
	sortByOverall(results)

	log.Debug("replacement: scored candidates",
		zap.Int("candidates", len(candidates)),
		zap.Int("excluded", len(candidates)-len(results)),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// ScoreCandidate computes the score and metadata for a single candidate.
// Exclusions are not checked here.
func (e *Engine) ScoreCandidate(original, candidate model.Product, criteria model.ReplacementCriteria) model.ReplacementCandidate {
	breakdown := model.ScoreBreakdown{
		ChemicalSimilarity:      round2(e.chemical.Similarity(original, candidate)),
		FunctionalCompatibility: round2(e.functional.Compatibility(criteria, candidate)),
		PerformanceMatch:        round2(e.performance.Match(criteria, candidate)),
		Availability:            availabilityScore(candidate),
		CostEffectiveness:       costScore(criteria, candidate),
		Sustainability:          sustainabilityScore(candidate),
	}

	score := model.ReplacementScore{
		Overall:    e.overall(breakdown),
		Breakdown:  breakdown,
		Confidence: confidence(original, candidate),
		Reasoning:  buildReasoning(breakdown),
	}

	return model.ReplacementCandidate{
		Product:  candidate,
		Score:    score,
		Metadata: deriveMetadata(score),
	}
}

// overall returns the weighted 0-100 score, normalized by the weight sum.
func (e *Engine) overall(b model.ScoreBreakdown) int {
	w := e.weights
	total := b.ChemicalSimilarity*w.Chemical +
		b.FunctionalCompatibility*w.Functional +
		b.PerformanceMatch*w.Performance +
		b.Availability*w.Availability +
		b.CostEffectiveness*w.Cost +
		b.Sustainability*w.Sustainability
	if sum := WeightSum(w); sum > 0 {
		total /= sum
	}
	return int(math.Round(clamp100(total)))
}

// sortByOverall sorts candidates descending by overall score, keeping input
// order for ties.
func sortByOverall(cs []model.ReplacementCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].Score.Overall > cs[j].Score.Overall
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
