package analysis

import (
	"context"

	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

func (s *serviceImpl) GetStructure(ctx context.Context, structureID string) (*structure.Structure, error) {
	return s.repo.GetByID(ctx, structureID)
}

func (s *serviceImpl) ListStructures(ctx context.Context, input *ListInput) (*ListResult, error) {
	if input == nil {
		input = &ListInput{}
	}
	page, pageSize := input.Page, input.PageSize
	if page <= 0 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	opts := structure.ListOptions{
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
		Stage:  structure.Stage(input.Stage),
	}
	if input.FileType != "" {
		ft := structure.FileType(input.FileType)
		if !ft.IsSupported() {
			return nil, errors.Newf(errors.ErrCodeUnsupportedFileType, "unsupported file type filter %q", input.FileType)
		}
		opts.FileType = ft
	}

	items, total, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*structure.Structure{}
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return &ListResult{
		Structures: items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *serviceImpl) GetAtoms(ctx context.Context, structureID string) (*AtomsOutput, error) {
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
	if atoms == nil {
		atoms = []structure.Atom{}
	}
	return &AtomsOutput{StructureID: st.ID, Atoms: atoms, Total: len(atoms)}, nil
}

// GetInteractions lists stored interactions. kind may be empty or any name
// accepted by structure.ParseInteractionKind.
func (s *serviceImpl) GetInteractions(ctx context.Context, structureID, kind string) (*InteractionsOutput, error) {
	var filter structure.InteractionKind
	if kind != "" {
		k, ok := structure.ParseInteractionKind(kind)
		if !ok {
			return nil, errors.Newf(errors.ErrCodeUnknownInteraction, "unknown interaction type %q", kind)
		}
		filter = k
	}

	st, err := s.repo.GetByID(ctx, structureID)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListInteractions(ctx, st.ID, filter)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []structure.Interaction{}
	}
	return &InteractionsOutput{
		StructureID:  st.ID,
		Kind:         string(filter),
		Interactions: list,
		Total:        len(list),
	}, nil
}

// DownloadURL returns a presigned URL for the raw structure file.
func (s *serviceImpl) DownloadURL(ctx context.Context, structureID string) (string, error) {
	st, err := s.repo.GetByID(ctx, structureID)
	if err != nil {
		return "", err
	}
	return s.objects.PresignedGetURL(ctx, st.StorageKey, 0)
}

// DeleteStructure removes the row (child rows cascade), the stored file and
// the cached analysis. Storage and cache cleanup failures are logged only.
func (s *serviceImpl) DeleteStructure(ctx context.Context, structureID string) error {
	st, err := s.repo.GetByID(ctx, structureID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, st.ID); err != nil {
		return err
	}

	log := logging.FromContext(ctx, s.logger).With(logging.StructureID(st.ID))
	if err := s.objects.Delete(ctx, st.StorageKey); err != nil {
		log.Warn("Failed to delete structure file", logging.String("key", st.StorageKey), logging.Err(err))
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, analysisCacheKey(st.FileHash)); err != nil {
			log.Warn("Failed to invalidate analysis cache", logging.Err(err))
		}
	}
	log.Info("Structure deleted")
	return nil
}
