package analysis

import (
	"context"
	"time"

	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

// Analyze runs the interaction engine over a parsed structure. Results are
// cached by file hash, so concurrent and repeated requests for the same
// content share one engine run.
func (s *serviceImpl) Analyze(ctx context.Context, structureID string) (*AnalysisOutput, error) {
	st, err := s.repo.GetByID(ctx, structureID)
	if err != nil {
		return nil, err
	}
	if !st.IsParsed() {
		return nil, errors.New(errors.ErrCodeStructureNotParsed, "structure not yet parsed").WithDetail(st.ID)
	}
	log := logging.FromContext(ctx, s.logger).With(logging.StructureID(st.ID))

	start := time.Now()
	computed := false
	load := func(ctx context.Context) (interface{}, error) {
		computed = true
		return s.runEngine(ctx, st.ID)
	}

	var result *structure.AnalysisResult
	if s.cacheEnabled {
		result = &structure.AnalysisResult{}
		if err := s.cache.GetOrSet(ctx, analysisCacheKey(st.FileHash), result, s.cacheTTL, load); err != nil {
			return nil, err
		}
		s.metrics.RecordCacheAccess(analysisCacheName, !computed)
	} else {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		result = v.(*structure.AnalysisResult)
	}

	if computed || st.Stage != structure.StageAnalyzed {
		if err := s.persistAnalysis(ctx, st, result); err != nil {
			return nil, err
		}
	}

	counts := kindCounts(result.Interactions)
	if computed {
		s.metrics.RecordAnalysis(result.Metadata.AtomCount, len(result.Bonds), counts, time.Since(start))
	}
	log.Info("Structure analyzed",
		logging.Bool("cached", !computed),
		logging.Int("bonds", len(result.Bonds)),
		logging.Int("interactions", result.Interactions.Total()),
		logging.Float64("processing_time_ms", result.Metadata.ProcessingTimeMs))

	s.notify(ctx, kafka.TopicStructureAnalyzed, kafka.EventStructureAnalyzed, st.ID, kafka.StructureAnalyzedPayload{
		StructureID:       st.ID,
		BondCount:         len(result.Bonds),
		InteractionCounts: counts,
		DurationMs:        int64(result.Metadata.ProcessingTimeMs),
	})

	return &AnalysisOutput{StructureID: st.ID, Cached: !computed, AnalysisResult: result}, nil
}

// runEngine loads the atoms and stored bonds of a structure and analyzes
// them. The store only holds bonds read from the file, so a structure
// without them gets fresh detection under the current thresholds on every
// run.
func (s *serviceImpl) runEngine(ctx context.Context, structureID string) (*structure.AnalysisResult, error) {
	atoms, err := s.repo.ListAtoms(ctx, structureID)
	if err != nil {
		return nil, err
	}
	if len(atoms) == 0 {
		return nil, errors.New(errors.ErrCodeNoAtoms, "no atoms found in structure").WithDetail(structureID)
	}
	bonds, err := s.repo.ListBonds(ctx, structureID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.engine.Analyze(atoms, bonds), nil
}

// persistAnalysis replaces the interactions and records the summary in one
// transaction. Detected bonds stay out of the bond store.
func (s *serviceImpl) persistAnalysis(ctx context.Context, st *structure.Structure, result *structure.AnalysisResult) error {
	summary := &structure.AnalysisSummary{
		Metadata:          result.Metadata,
		InteractionCounts: result.Interactions.Counts(),
		AnalyzedAt:        s.now().UTC(),
	}
	return s.repo.WithTx(ctx, func(tx structure.Repository) error {
		if err := tx.ReplaceInteractions(ctx, st.ID, result.Interactions.All()); err != nil {
			return err
		}
		return tx.UpdateAnalysis(ctx, st.ID, summary, len(result.Bonds))
	})
}

// AnalyzeAtoms analyzes an atom list without storing anything.
func (s *serviceImpl) AnalyzeAtoms(ctx context.Context, input *AdHocInput) (*AnalysisOutput, error) {
	if input == nil || len(input.Atoms) == 0 {
		return nil, errors.New(errors.ErrCodeNoAtoms, "no atoms provided")
	}
	atoms := make([]structure.Atom, len(input.Atoms))
	copy(atoms, input.Atoms)
	for i := range atoms {
		atoms[i].Index = i
	}
	if _, err := structure.ValidateAtoms(atoms, s.maxAtoms); err != nil {
		return nil, err
	}
	bonds := make([]structure.Bond, 0, len(input.Bonds))
	for _, b := range input.Bonds {
		if b.Atom1Index > b.Atom2Index {
			b.Atom1Index, b.Atom2Index = b.Atom2Index, b.Atom1Index
		}
		if b.Atom1Index < 0 || b.Atom2Index >= len(atoms) || b.Atom1Index == b.Atom2Index {
			return nil, errors.Newf(errors.ErrCodeValidation, "bond %d-%d does not reference a valid atom pair",
				b.Atom1Index, b.Atom2Index)
		}
		if !b.Type.IsValid() {
			b.Type = structure.BondSingle
		}
		b.Order = b.Type.Order()
		bonds = append(bonds, b)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := s.engine.Analyze(atoms, bonds)
	s.metrics.RecordAnalysis(len(atoms), len(result.Bonds), kindCounts(result.Interactions), time.Since(start))
	return &AnalysisOutput{AnalysisResult: result}, nil
}

func kindCounts(set structure.InteractionSet) map[string]int {
	counts := make(map[string]int, len(structure.AllInteractionKinds))
	for kind, n := range set.Counts() {
		counts[string(kind)] = n
	}
	return counts
}
