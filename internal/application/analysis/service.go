// Package analysis provides the application service for structure files:
// upload, parsing, validation, interaction analysis and the queries served
// over HTTP. It sits between the interface adapters and the structure
// domain, coordinating storage, cache and event publication.
package analysis

import (
	"context"
	"math"
	"time"

	"github.com/turtacn/BioDockViz/internal/config"
	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/internal/infrastructure/database/redis"
	"github.com/turtacn/BioDockViz/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/BioDockViz/internal/infrastructure/storage/minio"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

const (
	defaultInlineParseLimit = 1 << 20
	defaultCacheTTL         = time.Hour
	defaultPageSize         = 20
	maxPageSize             = 100
	maxPage                 = math.MaxInt32 / maxPageSize
	defaultSource           = "biodockviz"

	analysisCachePrefix = "analysis:"
	analysisCacheName   = "analysis"
	jobLockPrefix       = "structure:"
	jobLockTTL          = 5 * time.Minute
)

// Service defines the interface for structure application operations.
type Service interface {
	Upload(ctx context.Context, input *UploadInput) (*UploadOutput, error)
	Parse(ctx context.Context, structureID string) (*ParseOutput, error)
	Validate(ctx context.Context, structureID string) (*ValidationOutput, error)
	Analyze(ctx context.Context, structureID string) (*AnalysisOutput, error)
	AnalyzeAtoms(ctx context.Context, input *AdHocInput) (*AnalysisOutput, error)
	RequestAnalysis(ctx context.Context, structureID string, reanalyze bool) error

	GetStructure(ctx context.Context, structureID string) (*structure.Structure, error)
	ListStructures(ctx context.Context, input *ListInput) (*ListResult, error)
	GetAtoms(ctx context.Context, structureID string) (*AtomsOutput, error)
	GetInteractions(ctx context.Context, structureID, kind string) (*InteractionsOutput, error)
	DownloadURL(ctx context.Context, structureID string) (string, error)
	DeleteStructure(ctx context.Context, structureID string) error

	// HandleJob is the worker entry point for queued analysis jobs.
	HandleJob(ctx context.Context, job *AnalysisJob) error
}

// EventPublisher publishes domain events. *kafka.Producer satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, env *kafka.EventEnvelope) error
}

// UploadInput contains an uploaded structure file.
type UploadInput struct {
	FileName    string
	ContentType string
	Content     []byte
}

// UploadOutput is the stored structure after upload.
type UploadOutput struct {
	Structure    *structure.Structure `json:"structure"`
	Deduplicated bool                 `json:"deduplicated"`
	Warnings     []string             `json:"warnings,omitempty"`
}

// ParseOutput summarises a parse run.
type ParseOutput struct {
	StructureID     string                   `json:"structure_id"`
	AtomCount       int                      `json:"atom_count"`
	BondCount       int                      `json:"bond_count"`
	UnknownElements int                      `json:"unknown_elements"`
	Metadata        *structure.ParseMetadata `json:"metadata"`
}

// ValidationOutput reports atom level problems of a parsed structure.
type ValidationOutput struct {
	StructureID        string   `json:"structure_id"`
	Valid              bool     `json:"valid"`
	AtomCount          int      `json:"atom_count"`
	InvalidCoordinates []int    `json:"invalid_coordinates"`
	UnknownElements    []int    `json:"unknown_elements"`
	OversizedLabels    []int    `json:"oversized_labels,omitempty"`
	Errors             []string `json:"errors,omitempty"`
}

// AnalysisOutput is the engine result for one structure. Cached is set when
// the result came from the analysis cache.
type AnalysisOutput struct {
	StructureID string `json:"structure_id,omitempty"`
	Cached      bool   `json:"cached"`
	*structure.AnalysisResult
}

// AdHocInput is an atom list analyzed without persistence. Atom indices are
// reassigned from list position.
type AdHocInput struct {
	Atoms []structure.Atom `json:"atoms"`
	Bonds []structure.Bond `json:"bonds,omitempty"`
}

// ListInput contains input for listing structures.
type ListInput struct {
	Page     int
	PageSize int
	FileType string
	Stage    string
}

// ListResult represents a paginated list of structures.
type ListResult struct {
	Structures []*structure.Structure `json:"structures"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	TotalPages int                    `json:"total_pages"`
}

// AtomsOutput lists the atoms of a parsed structure.
type AtomsOutput struct {
	StructureID string           `json:"structure_id"`
	Atoms       []structure.Atom `json:"atoms"`
	Total       int              `json:"total"`
}

// InteractionsOutput lists stored interactions, optionally of one kind.
type InteractionsOutput struct {
	StructureID  string                  `json:"structure_id"`
	Kind         string                  `json:"type,omitempty"`
	Interactions []structure.Interaction `json:"interactions"`
	Total        int                     `json:"total"`
}

// ServiceDeps collects the collaborators of the service. Cache, Locks,
// Publisher and Metrics are optional.
type ServiceDeps struct {
	Repo      structure.Repository
	Objects   minio.ObjectRepository
	Cache     redis.Cache
	Locks     redis.LockFactory
	Publisher EventPublisher
	Metrics   *prometheus.AppMetrics
	Logger    logging.Logger

	Upload   config.UploadConfig
	Analysis config.AnalysisConfig

	// Source names the emitting service in event envelopes.
	Source string
}

// serviceImpl implements the Service interface.
type serviceImpl struct {
	repo      structure.Repository
	objects   minio.ObjectRepository
	cache     redis.Cache
	locks     redis.LockFactory
	publisher EventPublisher
	metrics   *prometheus.AppMetrics
	logger    logging.Logger

	engine       *structure.Engine
	upload       config.UploadConfig
	maxAtoms     int
	cacheTTL     time.Duration
	cacheEnabled bool
	source       string
	now          func() time.Time
}

// NewService creates the structure application service.
func NewService(deps ServiceDeps) (Service, error) {
	if deps.Repo == nil {
		return nil, errors.New(errors.ErrCodeInternal, "analysis service requires a repository")
	}
	if deps.Objects == nil {
		return nil, errors.New(errors.ErrCodeInternal, "analysis service requires object storage")
	}

	th, err := ThresholdsFromConfig(deps.Analysis)
	if err != nil {
		return nil, err
	}

	s := &serviceImpl{
		repo:         deps.Repo,
		objects:      deps.Objects,
		cache:        deps.Cache,
		locks:        deps.Locks,
		publisher:    deps.Publisher,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		engine:       structure.NewEngine(th),
		upload:       deps.Upload,
		maxAtoms:     deps.Analysis.MaxAtoms,
		cacheTTL:     deps.Analysis.CacheTTL,
		cacheEnabled: deps.Analysis.CacheEnabled && deps.Cache != nil,
		source:       deps.Source,
		now:          time.Now,
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	if s.metrics == nil {
		s.metrics = prometheus.NewNoopAppMetrics()
	}
	if s.upload.MaxFileSize <= 0 || s.upload.MaxFileSize > structure.MaxFileSize {
		s.upload.MaxFileSize = structure.MaxFileSize
	}
	if s.upload.InlineParseLimit <= 0 {
		s.upload.InlineParseLimit = defaultInlineParseLimit
	}
	if s.maxAtoms <= 0 {
		s.maxAtoms = structure.MaxAtoms
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = defaultCacheTTL
	}
	if s.source == "" {
		s.source = defaultSource
	}
	s.logger = s.logger.Named("analysis")
	return s, nil
}

// ThresholdsFromConfig builds engine thresholds, keeping defaults for zero
// config values.
func ThresholdsFromConfig(cfg config.AnalysisConfig) (*structure.Thresholds, error) {
	var opts []structure.ThresholdOption
	def := structure.DefaultThresholds()

	if cfg.HBondMinDistance > 0 || cfg.HBondMaxDistance > 0 {
		lo, hi := def.HydrogenBond.MinDistance, def.HydrogenBond.MaxDistance
		if cfg.HBondMinDistance > 0 {
			lo = cfg.HBondMinDistance
		}
		if cfg.HBondMaxDistance > 0 {
			hi = cfg.HBondMaxDistance
		}
		opts = append(opts, structure.WithHydrogenBondRange(lo, hi))
	}
	if cfg.SaltBridgeMax > 0 {
		opts = append(opts, structure.WithSaltBridgeMaxDistance(cfg.SaltBridgeMax))
	}
	if cfg.VdWMinRatio > 0 || cfg.VdWMaxRatio > 0 {
		lo, hi := def.VdW.MinRatio, def.VdW.MaxRatio
		if cfg.VdWMinRatio > 0 {
			lo = cfg.VdWMinRatio
		}
		if cfg.VdWMaxRatio > 0 {
			hi = cfg.VdWMaxRatio
		}
		opts = append(opts, structure.WithVdWRatio(lo, hi))
	}
	if cfg.BondTolerance > 0 {
		opts = append(opts, structure.WithBondTolerance(cfg.BondTolerance))
	}
	if cfg.MinCellSize > 0 {
		opts = append(opts, structure.WithMinCellSize(cfg.MinCellSize))
	}
	return structure.NewThresholds(opts...)
}

func analysisCacheKey(fileHash string) string {
	return analysisCachePrefix + fileHash
}

// publish wraps payload in an envelope carrying the request correlation id
// and sends it. A service without a publisher drops events.
func (s *serviceImpl) publish(ctx context.Context, topic, eventType, key string, payload interface{}) error {
	if s.publisher == nil {
		return nil
	}
	env, err := kafka.NewEventEnvelope(eventType, s.source, payload)
	if err != nil {
		return err
	}
	if cid := logging.CorrelationIDFromContext(ctx); cid != "" {
		env.WithCorrelationID(cid)
	}
	err = s.publisher.PublishEvent(ctx, topic, key, env)
	s.metrics.RecordEventPublished(topic, err)
	return err
}

// notify publishes a lifecycle event, logging failures instead of returning
// them.
func (s *serviceImpl) notify(ctx context.Context, topic, eventType, key string, payload interface{}) {
	if err := s.publish(ctx, topic, eventType, key, payload); err != nil {
		logging.FromContext(ctx, s.logger).Warn("Failed to publish event",
			logging.String("topic", topic), logging.StructureID(key), logging.Err(err))
	}
}
