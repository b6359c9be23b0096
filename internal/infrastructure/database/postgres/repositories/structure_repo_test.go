package repositories

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/BioDockViz/internal/domain/geometry"
	"github.com/turtacn/BioDockViz/internal/domain/structure"
	"github.com/turtacn/BioDockViz/internal/infrastructure/database/postgres"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/BioDockViz/pkg/errors"
)

const testStructureID = "5b0d3c9e-4c1e-4b7a-9a53-0f4a3d2c1b10"

var structureRowColumns = []string{
	"id", "file_name", "file_type", "file_size", "file_hash", "content_type", "storage_key",
	"stage", "metadata", "atom_count", "bond_count", "analysis_data", "created_at", "updated_at",
}

type StructureRepoTestSuite struct {
	suite.Suite
	db   *sql.DB
	mock sqlmock.Sqlmock
	repo structure.Repository
}

func (s *StructureRepoTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	s.Require().NoError(err)

	log := logging.NewNopLogger()
	s.repo = NewPostgresStructureRepo(postgres.NewConnectionWithDB(s.db, log), log)
}

func (s *StructureRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func TestStructureRepoTestSuite(t *testing.T) {
	suite.Run(t, new(StructureRepoTestSuite))
}

func (s *StructureRepoTestSuite) TestCreate_Success() {
	st := &structure.Structure{
		FileName:    "1abc.pdb",
		FileType:    structure.FileTypePDB,
		FileSize:    2048,
		FileHash:    "ab12",
		ContentType: "chemical/x-pdb",
		StorageKey:  "structures/ab12.pdb",
	}
	now := time.Now()

	s.mock.ExpectQuery("INSERT INTO structures").
		WithArgs(sqlmock.AnyArg(), "1abc.pdb", "pdb", int64(2048), "ab12", "chemical/x-pdb", "structures/ab12.pdb",
			"uploaded", nil, 0, 0, nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	err := s.repo.Create(context.Background(), st)
	s.Require().NoError(err)
	s.NotEmpty(st.ID)
	s.Equal(structure.StageUploaded, st.Stage)
	s.Equal(now, st.CreatedAt)
}

func (s *StructureRepoTestSuite) TestCreate_DuplicateHash() {
	st := &structure.Structure{ID: testStructureID, FileType: structure.FileTypeSDF, FileHash: "dup"}

	s.mock.ExpectQuery("INSERT INTO structures").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := s.repo.Create(context.Background(), st)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeStructureAlreadyExists))
}

func (s *StructureRepoTestSuite) TestCreate_DatabaseError() {
	s.mock.ExpectQuery("INSERT INTO structures").WillReturnError(errors.New("connection reset"))

	err := s.repo.Create(context.Background(), &structure.Structure{})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func (s *StructureRepoTestSuite) TestGetByID_Found() {
	now := time.Now()
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM structures WHERE id = $1")).
		WithArgs(testStructureID).
		WillReturnRows(sqlmock.NewRows(structureRowColumns).AddRow(
			testStructureID, "lig.sdf", "sdf", int64(512), "ff00", "chemical/x-mdl-sdfile", "structures/ff00.sdf",
			"analyzed", []byte(`{"title":"ethanol","model_count":1}`), 9, 8,
			[]byte(`{"metadata":{"atom_count":9,"bond_count":8,"algorithm":"skipped","processing_time_ms":0,"thresholds":null},"interaction_counts":{"vdw_contact":2}}`),
			now, now,
		))

	st, err := s.repo.GetByID(context.Background(), testStructureID)
	s.Require().NoError(err)
	s.Equal(structure.FileTypeSDF, st.FileType)
	s.Equal(structure.StageAnalyzed, st.Stage)
	s.Require().NotNil(st.Metadata)
	s.Equal("ethanol", st.Metadata.Title)
	s.Require().NotNil(st.Analysis)
	s.Equal(8, st.Analysis.Metadata.BondCount)
	s.Equal(2, st.Analysis.InteractionCounts[structure.KindVdWContact])
}

func (s *StructureRepoTestSuite) TestGetByID_NotFound() {
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM structures WHERE id = $1")).
		WithArgs(testStructureID).
		WillReturnError(sql.ErrNoRows)

	_, err := s.repo.GetByID(context.Background(), testStructureID)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeStructureNotFound))
}

func (s *StructureRepoTestSuite) TestGetByID_MalformedID() {
	_, err := s.repo.GetByID(context.Background(), "not-a-uuid")
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeStructureNotFound))
}

func (s *StructureRepoTestSuite) TestGetByHash_NotFound() {
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM structures WHERE file_hash = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(structureRowColumns))

	_, err := s.repo.GetByHash(context.Background(), "missing")
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeStructureNotFound))
}

func (s *StructureRepoTestSuite) TestList_WithFilters() {
	now := time.Now()
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM structures WHERE file_type = $1 AND stage = $2")).
		WithArgs("pdb", "parsed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	s.mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id LIMIT $3 OFFSET $4")).
		WithArgs("pdb", "parsed", 100, 10).
		WillReturnRows(sqlmock.NewRows(structureRowColumns).
			AddRow(testStructureID, "a.pdb", "pdb", int64(1), "h1", "chemical/x-pdb", "k1", "parsed", nil, 1, 0, nil, now, now))

	list, total, err := s.repo.List(context.Background(), structure.ListOptions{
		Limit: 500, Offset: 10, FileType: structure.FileTypePDB, Stage: structure.StageParsed,
	})
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Require().Len(list, 1)
	s.Nil(list[0].Metadata)
}

func (s *StructureRepoTestSuite) TestList_Defaults() {
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM structures")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	s.mock.ExpectQuery(regexp.QuoteMeta("LIMIT $1 OFFSET $2")).
		WithArgs(defaultListLimit, 0).
		WillReturnRows(sqlmock.NewRows(structureRowColumns))

	list, total, err := s.repo.List(context.Background(), structure.ListOptions{Offset: -4})
	s.Require().NoError(err)
	s.Zero(total)
	s.NotNil(list)
	s.Empty(list)
}

func (s *StructureRepoTestSuite) TestUpdateStage() {
	s.mock.ExpectExec("UPDATE structures SET stage").
		WithArgs("parsing", testStructureID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.NoError(s.repo.UpdateStage(context.Background(), testStructureID, structure.StageParsing))

	s.mock.ExpectExec("UPDATE structures SET stage").
		WithArgs("failed", testStructureID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := s.repo.UpdateStage(context.Background(), testStructureID, structure.StageFailed)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeStructureNotFound))
}

func (s *StructureRepoTestSuite) TestUpdateParseResult() {
	meta := &structure.ParseMetadata{Title: "crambin", ModelCount: 1}
	s.mock.ExpectExec("UPDATE structures").
		WithArgs("parsed", []byte(`{"title":"crambin","model_count":1}`), 327, 0, testStructureID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.UpdateParseResult(context.Background(), testStructureID, meta, 327, 0))
}

func (s *StructureRepoTestSuite) TestUpdateAnalysis() {
	summary := &structure.AnalysisSummary{
		Metadata:          structure.AnalysisMetadata{AtomCount: 3, BondCount: 2, Algorithm: structure.AlgorithmSpatialHash},
		InteractionCounts: map[structure.InteractionKind]int{structure.KindVdWContact: 1},
	}
	s.mock.ExpectExec("UPDATE structures").
		WithArgs("analyzed", sqlmock.AnyArg(), 2, testStructureID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.UpdateAnalysis(context.Background(), testStructureID, summary, 2))
}

func (s *StructureRepoTestSuite) TestDelete() {
	s.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM structures WHERE id = $1")).
		WithArgs(testStructureID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.NoError(s.repo.Delete(context.Background(), testStructureID))

	s.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM structures WHERE id = $1")).
		WithArgs(testStructureID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.True(pkgerrors.IsCode(s.repo.Delete(context.Background(), testStructureID), pkgerrors.ErrCodeStructureNotFound))
}

func (s *StructureRepoTestSuite) TestWithTx_Commit() {
	atoms := []structure.Atom{{Index: 0, Element: "C", Position: geometry.Vec3{X: 1}}}

	s.mock.ExpectBegin()
	s.mock.ExpectExec("UPDATE structures SET stage").WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec("DELETE FROM atoms").WillReturnResult(sqlmock.NewResult(0, 0))
	prep := s.mock.ExpectPrepare(`COPY "atoms"`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectCommit()

	err := s.repo.WithTx(context.Background(), func(tx structure.Repository) error {
		if err := tx.UpdateStage(context.Background(), testStructureID, structure.StageParsing); err != nil {
			return err
		}
		return tx.ReplaceAtoms(context.Background(), testStructureID, atoms)
	})
	s.NoError(err)
}

func (s *StructureRepoTestSuite) TestWithTx_Rollback() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec("UPDATE structures SET stage").WillReturnError(errors.New("deadlock"))
	s.mock.ExpectRollback()

	err := s.repo.WithTx(context.Background(), func(tx structure.Repository) error {
		return tx.UpdateStage(context.Background(), testStructureID, structure.StageParsing)
	})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}
