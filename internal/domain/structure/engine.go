package structure

import "time"

// Engine runs bond detection and interaction classification for one
// structure over a single shared spatial index. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	th         *Thresholds
	detector   *BondDetector
	classifier *InteractionClassifier
	now        func() time.Time
}

// NewEngine returns an Engine using th, or the defaults when th is nil.
func NewEngine(th *Thresholds) *Engine {
	if th == nil {
		th = DefaultThresholds()
	}
	return &Engine{
		th:         th,
		detector:   NewBondDetector(th),
		classifier: NewInteractionClassifier(th),
		now:        time.Now,
	}
}

// Thresholds returns the parameter set of the engine.
func (e *Engine) Thresholds() *Thresholds { return e.th }

// Analyze detects bonds (unless bonds is non-empty, in which case it is
// used as given) and classifies interactions. Fewer than two atoms yields an
// empty result with algorithm "skipped".
func (e *Engine) Analyze(atoms []Atom, bonds []Bond) *AnalysisResult {
	if len(atoms) < 2 {
		return &AnalysisResult{
			Bonds:        []Bond{},
			Interactions: NewInteractionSet(),
			Metadata: AnalysisMetadata{
				AtomCount:  len(atoms),
				Algorithm:  AlgorithmSkipped,
				Thresholds: map[string]map[string]any{},
			},
		}
	}

	start := e.now()
	idx := newSpatialIndex(atoms, e.th.Grid.MinCellSize, e.th.Grid.AtomsPerCellAxis)

	if len(bonds) == 0 {
		bonds = e.detector.DetectWithIndex(atoms, idx)
	}
	interactions := e.classifier.ClassifyWithIndex(atoms, bonds, idx)

	elapsed := e.now().Sub(start)
	return &AnalysisResult{
		Bonds:        bonds,
		Interactions: interactions,
		Metadata: AnalysisMetadata{
			ProcessingTimeMs: float64(elapsed.Microseconds()) / 1000,
			AtomCount:        len(atoms),
			BondCount:        len(bonds),
			Algorithm:        AlgorithmSpatialHash,
			CellSize:         idx.CellSize(),
			Thresholds:       e.th.MetadataMap(),
		},
	}
}
