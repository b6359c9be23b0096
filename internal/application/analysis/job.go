package analysis

import (
	"context"
	"time"

	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/internal/infrastructure/database/redis"
	"github.com/turtacn/BioDockViz/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

// Job outcomes recorded in jobs_processed_total.
const (
	JobStatusSuccess = "success"
	JobStatusFailed  = "failed"
	JobStatusSkipped = "skipped"
)

// AnalysisJob is one queued unit of work. Stage "parse" parses before
// analyzing; "analyze" parses only when the structure has no atoms yet.
type AnalysisJob struct {
	StructureID   string
	Stage         string
	Reanalyze     bool
	CorrelationID string
	RequestedAt   time.Time
}

// JobFromMessage decodes an analysis.requested event.
func JobFromMessage(msg *kafka.Message) (*AnalysisJob, error) {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		return nil, err
	}
	if env.EventType != kafka.EventAnalysisRequested {
		return nil, errors.Newf(errors.ErrCodeJobInvalid, "unexpected event type %q", env.EventType)
	}
	var p kafka.AnalysisJobPayload
	if err := env.DecodePayload(&p); err != nil {
		return nil, err
	}
	if p.StructureID == "" {
		return nil, errors.New(errors.ErrCodeJobInvalid, "job has no structure id")
	}
	return &AnalysisJob{
		StructureID:   p.StructureID,
		Stage:         p.Stage,
		Reanalyze:     p.Reanalyze,
		CorrelationID: env.CorrelationID,
		RequestedAt:   p.RequestedAt,
	}, nil
}

// RequestAnalysis queues an analysis job instead of running it inline.
func (s *serviceImpl) RequestAnalysis(ctx context.Context, structureID string, reanalyze bool) error {
	if s.publisher == nil {
		return errors.New(errors.ErrCodeServiceUnavailable, "job queue is not configured")
	}
	st, err := s.repo.GetByID(ctx, structureID)
	if err != nil {
		return err
	}
	stage := kafka.JobStageAnalyze
	if !st.IsParsed() {
		stage = kafka.JobStageParse
	}
	return s.enqueue(ctx, st.ID, stage, reanalyze)
}

// HandleJob parses and analyzes the structure named by job. Jobs for
// structures that no longer exist, are already analyzed or are held by
// another worker are skipped. Errors caused by the file itself are logged and
// swallowed so the job is not redelivered; infrastructure errors are
// returned for retry.
func (s *serviceImpl) HandleJob(ctx context.Context, job *AnalysisJob) (err error) {
	if job == nil || job.StructureID == "" {
		return errors.New(errors.ErrCodeJobInvalid, "job has no structure id")
	}
	switch job.Stage {
	case "", kafka.JobStageParse, kafka.JobStageAnalyze:
	default:
		return errors.Newf(errors.ErrCodeJobInvalid, "unknown job stage %q", job.Stage)
	}
	if job.CorrelationID != "" {
		ctx = logging.ContextWithCorrelationID(ctx, job.CorrelationID)
	}
	log := logging.FromContext(ctx, s.logger).With(logging.StructureID(job.StructureID), logging.String("stage", job.Stage))

	start := time.Now()
	status := JobStatusSuccess
	defer func() {
		if err != nil {
			status = JobStatusFailed
		}
		s.metrics.RecordJob(status, time.Since(start))
	}()

	if s.locks != nil {
		mu := s.locks.NewMutex(jobLockPrefix+job.StructureID, redis.WithLockTTL(jobLockTTL), redis.WithWatchdog())
		ok, lockErr := mu.TryLock(ctx)
		if lockErr != nil {
			return lockErr
		}
		if !ok {
			log.Info("Structure is being processed by another worker")
			status = JobStatusSkipped
			return nil
		}
		defer func() {
			if unlockErr := mu.Unlock(context.WithoutCancel(ctx)); unlockErr != nil {
				log.Warn("Failed to release job lock", logging.Err(unlockErr))
			}
		}()
	}

	st, err := s.repo.GetByID(ctx, job.StructureID)
	if err != nil {
		if errors.IsNotFound(err) {
			log.Warn("Structure of job no longer exists")
			status = JobStatusSkipped
			return nil
		}
		return err
	}
	if st.Stage == structure.StageAnalyzed && !job.Reanalyze && job.Stage != kafka.JobStageParse {
		log.Info("Structure already analyzed")
		status = JobStatusSkipped
		return nil
	}

	if job.Stage == kafka.JobStageParse || !st.IsParsed() {
		if _, err := s.Parse(ctx, st.ID); err != nil {
			return s.jobError(log, &status, err)
		}
	}
	if job.Reanalyze && s.cache != nil {
		if err := s.cache.Delete(ctx, analysisCacheKey(st.FileHash)); err != nil {
			log.Warn("Failed to invalidate analysis cache", logging.Err(err))
		}
	}
	if _, err := s.Analyze(ctx, st.ID); err != nil {
		return s.jobError(log, &status, err)
	}
	log.Info("Analysis job completed", logging.Duration("duration", time.Since(start)))
	return nil
}

// jobError decides whether err is worth redelivering the job for.
func (s *serviceImpl) jobError(log logging.Logger, status *string, err error) error {
	if errors.IsValidation(err) || errors.IsNotFound(err) {
		log.Error("Analysis job failed permanently", logging.Err(err))
		*status = JobStatusFailed
		return nil
	}
	return err
}
