package structure

import "context"

// ListOptions pages through stored structures, newest first.
type ListOptions struct {
	Limit    int
	Offset   int
	FileType FileType
	Stage    Stage
}

// StructureRepository persists Structure rows.
type StructureRepository interface {
	// Create inserts s and fills ID, CreatedAt and UpdatedAt when empty.
	// A duplicate file hash yields ErrCodeStructureAlreadyExists.
	Create(ctx context.Context, s *Structure) error

	// GetByID returns ErrCodeStructureNotFound when no row matches.
	GetByID(ctx context.Context, id string) (*Structure, error)

	// GetByHash returns ErrCodeStructureNotFound when no row matches.
	GetByHash(ctx context.Context, fileHash string) (*Structure, error)

	List(ctx context.Context, opts ListOptions) ([]*Structure, int64, error)

	UpdateStage(ctx context.Context, id string, stage Stage) error

	// UpdateParseResult records parser metadata and counts and moves the
	// structure to StageParsed.
	UpdateParseResult(ctx context.Context, id string, meta *ParseMetadata, atomCount, bondCount int) error

	// UpdateAnalysis stores the analysis digest and moves the structure to
	// StageAnalyzed.
	UpdateAnalysis(ctx context.Context, id string, summary *AnalysisSummary, bondCount int) error

	// Delete removes the structure and, by cascade, all child rows.
	Delete(ctx context.Context, id string) error
}

// AtomRepository persists the atoms of a structure.
type AtomRepository interface {
	ReplaceAtoms(ctx context.Context, structureID string, atoms []Atom) error
	ListAtoms(ctx context.Context, structureID string) ([]Atom, error)
}

// BondRepository persists the bonds of a structure.
type BondRepository interface {
	ReplaceBonds(ctx context.Context, structureID string, bonds []Bond) error
	ListBonds(ctx context.Context, structureID string) ([]Bond, error)
}

// InteractionRepository persists detected interactions.
type InteractionRepository interface {
	ReplaceInteractions(ctx context.Context, structureID string, interactions []Interaction) error

	// ListInteractions returns all interactions of the structure, or only
	// those of kind when kind is non-empty.
	ListInteractions(ctx context.Context, structureID string, kind InteractionKind) ([]Interaction, error)
}

// Repository aggregates the structure stores. WithTx runs fn against a
// repository bound to one transaction, committing when fn returns nil.
type Repository interface {
	StructureRepository
	AtomRepository
	BondRepository
	InteractionRepository

	WithTx(ctx context.Context, fn func(Repository) error) error
}
