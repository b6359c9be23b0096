package analysis

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/internal/infrastructure/chemfile"
	"github.com/turtacn/BioDockViz/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/internal/infrastructure/storage/minio"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

func (s *serviceImpl) Upload(ctx context.Context, input *UploadInput) (*UploadOutput, error) {
	if input == nil || len(input.Content) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidContent, "file is empty")
	}
	log := logging.FromContext(ctx, s.logger)

	name := structure.SanitizeFilename(input.FileName)
	if name == "" {
		return nil, errors.New(errors.ErrCodeUnsupportedFileType, "file name is missing")
	}
	fileType, err := structure.FileTypeFromName(name)
	if err != nil {
		return nil, err
	}
	if !s.extensionAllowed(fileType) {
		return nil, errors.Newf(errors.ErrCodeUnsupportedFileType, "file type .%s is not accepted", fileType)
	}
	if !structure.ValidateContentType(input.ContentType) {
		return nil, errors.Newf(errors.ErrCodeUnsupportedFileType, "unsupported content type %q", input.ContentType)
	}
	if int64(len(input.Content)) > s.upload.MaxFileSize {
		return nil, errors.Newf(errors.ErrCodeFileTooLarge, "file too large: %d bytes (max: %d)",
			len(input.Content), s.upload.MaxFileSize)
	}
	if err := structure.ValidateContent(fileType, input.Content); err != nil {
		return nil, err
	}

	hash := structure.ContentHash(input.Content)
	existing, err := s.repo.GetByHash(ctx, hash)
	if err == nil {
		if existing.Stage == structure.StageFailed {
			log.Info("Retrying failed structure", logging.StructureID(existing.ID), logging.String("file_hash", hash))
			return s.retryFailed(ctx, existing, input.Content)
		}
		log.Info("Structure already stored", logging.StructureID(existing.ID), logging.String("file_hash", hash))
		return &UploadOutput{Structure: existing, Deduplicated: true}, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	key := minio.StructureObjectKey(hash, string(fileType))
	if err := s.storeObject(ctx, key, name, hash, fileType, input.Content); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	st := &structure.Structure{
		ID:          uuid.NewString(),
		FileName:    name,
		FileType:    fileType,
		FileSize:    int64(len(input.Content)),
		FileHash:    hash,
		ContentType: structure.MIMEType(fileType),
		StorageKey:  key,
		Stage:       structure.StageUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, st); err != nil {
		// A concurrent upload of the same bytes won the insert.
		if errors.IsCode(err, errors.ErrCodeStructureAlreadyExists) {
			if existing, getErr := s.repo.GetByHash(ctx, hash); getErr == nil {
				return &UploadOutput{Structure: existing, Deduplicated: true}, nil
			}
		}
		return nil, err
	}
	s.metrics.RecordUpload(string(fileType))
	log.Info("Structure uploaded",
		logging.StructureID(st.ID),
		logging.String("file_type", string(fileType)),
		logging.Int64("file_size", st.FileSize))

	s.notify(ctx, kafka.TopicStructureUploaded, kafka.EventStructureUploaded, st.ID, kafka.StructureUploadedPayload{
		StructureID: st.ID,
		ContentHash: hash,
		FileType:    string(fileType),
		Filename:    name,
		FileSize:    st.FileSize,
		ObjectKey:   key,
	})

	return s.startParse(ctx, st)
}

// retryFailed parses a structure whose earlier parse failed again, under its
// existing ID. The object is rewritten first since a missing object is one
// way the earlier attempt can fail.
func (s *serviceImpl) retryFailed(ctx context.Context, st *structure.Structure, content []byte) (*UploadOutput, error) {
	if err := s.storeObject(ctx, st.StorageKey, st.FileName, st.FileHash, st.FileType, content); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStage(ctx, st.ID, structure.StageUploaded); err != nil {
		return nil, err
	}
	st.Stage = structure.StageUploaded
	return s.startParse(ctx, st)
}

func (s *serviceImpl) storeObject(ctx context.Context, key, name, hash string, fileType structure.FileType, content []byte) error {
	_, err := s.objects.Upload(ctx, key, content, structure.MIMEType(fileType), map[string]string{
		"file-name": name,
		"file-hash": hash,
	})
	return err
}

// startParse queues large files for the worker when a queue is configured
// and parses everything else inline.
func (s *serviceImpl) startParse(ctx context.Context, st *structure.Structure) (*UploadOutput, error) {
	if st.FileSize > s.upload.InlineParseLimit && s.publisher != nil {
		if err := s.enqueue(ctx, st.ID, kafka.JobStageParse, false); err != nil {
			return nil, err
		}
		if err := s.repo.UpdateStage(ctx, st.ID, structure.StageParsing); err != nil {
			return nil, err
		}
		st.Stage = structure.StageParsing
		return &UploadOutput{Structure: st}, nil
	}

	parsed, err := s.Parse(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.GetByID(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	return &UploadOutput{Structure: stored, Warnings: parsed.Metadata.Warnings}, nil
}

func (s *serviceImpl) extensionAllowed(t structure.FileType) bool {
	if len(s.upload.AllowedExtensions) == 0 {
		return true
	}
	for _, ext := range s.upload.AllowedExtensions {
		if strings.EqualFold(strings.TrimPrefix(ext, "."), string(t)) {
			return true
		}
	}
	return false
}

// enqueue publishes an analysis job for structureID.
func (s *serviceImpl) enqueue(ctx context.Context, structureID, stage string, reanalyze bool) error {
	err := s.publish(ctx, kafka.TopicAnalysisJobs, kafka.EventAnalysisRequested, structureID, kafka.AnalysisJobPayload{
		StructureID: structureID,
		Stage:       stage,
		Reanalyze:   reanalyze,
		RequestedAt: s.now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeMessagingError, "failed to queue analysis job")
	}
	return nil
}

func (s *serviceImpl) Parse(ctx context.Context, structureID string) (*ParseOutput, error) {
	st, err := s.repo.GetByID(ctx, structureID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := s.parse(ctx, st)
	s.metrics.RecordParse(string(st.FileType), time.Since(start), err)
	if err != nil {
		logging.FromContext(ctx, s.logger).Error("Failed to parse structure",
			logging.StructureID(st.ID), logging.Err(err))
		if ctx.Err() == nil {
			if stageErr := s.repo.UpdateStage(ctx, st.ID, structure.StageFailed); stageErr != nil {
				s.logger.Warn("Failed to mark structure failed", logging.StructureID(st.ID), logging.Err(stageErr))
			}
		}
		return nil, err
	}

	s.notify(ctx, kafka.TopicStructureParsed, kafka.EventStructureParsed, st.ID, kafka.StructureParsedPayload{
		StructureID:  st.ID,
		AtomCount:    out.AtomCount,
		BondCount:    out.BondCount,
		WarningCount: len(out.Metadata.Warnings),
	})
	return out, nil
}

func (s *serviceImpl) parse(ctx context.Context, st *structure.Structure) (*ParseOutput, error) {
	data, err := s.objects.Download(ctx, st.StorageKey)
	if err != nil {
		return nil, err
	}

	res, err := chemfile.Parse(ctx, st.FileType, bytes.NewReader(data))
	if err != nil {
		if errors.GetCode(err) == errors.ErrCodeUnknown {
			return nil, errors.Wrap(err, errors.ErrCodeParseFailed, "failed to parse structure")
		}
		return nil, err
	}

	validation, err := structure.ValidateAtoms(res.Atoms, s.maxAtoms)
	if err != nil {
		return nil, err
	}

	meta := res.Metadata()
	err = s.repo.WithTx(ctx, func(tx structure.Repository) error {
		if err := tx.ReplaceAtoms(ctx, st.ID, res.Atoms); err != nil {
			return err
		}
		if err := tx.ReplaceBonds(ctx, st.ID, res.Bonds); err != nil {
			return err
		}
		return tx.UpdateParseResult(ctx, st.ID, meta, len(res.Atoms), len(res.Bonds))
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx, s.logger).Info("Structure parsed",
		logging.StructureID(st.ID),
		logging.Int("atoms", len(res.Atoms)),
		logging.Int("bonds", len(res.Bonds)),
		logging.Int("warnings", len(meta.Warnings)))

	return &ParseOutput{
		StructureID:     st.ID,
		AtomCount:       len(res.Atoms),
		BondCount:       len(res.Bonds),
		UnknownElements: len(validation.UnknownElements),
		Metadata:        meta,
	}, nil
}

func (s *serviceImpl) Validate(ctx context.Context, structureID string) (*ValidationOutput, error) {
	st, err := s.repo.GetByID(ctx, structureID)
	if err != nil {
		return nil, err
	}
	if !st.IsParsed() {
		return nil, errors.New(errors.ErrCodeStructureNotParsed, "structure not yet parsed").WithDetail(st.ID)
	}
	atoms, err := s.repo.ListAtoms(ctx, st.ID)
	if err != nil {
		return nil, err
	}

	res, verr := structure.ValidateAtoms(atoms, s.maxAtoms)
	out := &ValidationOutput{
		StructureID:        st.ID,
		Valid:              verr == nil,
		AtomCount:          res.AtomCount,
		InvalidCoordinates: nonNil(res.InvalidCoordinates),
		UnknownElements:    nonNil(res.UnknownElements),
		OversizedLabels:    res.OversizedLabels,
	}
	if verr != nil {
		out.Errors = []string{verr.Error()}
	}
	return out, nil
}

func nonNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
