package repositories

import (
	"context"
	"errors"
	"regexp"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/turtacn/BioDockViz/internal/domain/geometry"
	"github.com/turtacn/BioDockViz/internal/domain/structure"
	pkgerrors "github.com/turtacn/BioDockViz/pkg/errors"
)

func (s *StructureRepoTestSuite) TestReplaceAtoms() {
	atoms := []structure.Atom{
		{Index: 0, Serial: 1, Name: "N", ResidueName: "ALA", ChainID: "A", ResidueSeq: 1, Position: geometry.Vec3{X: 1, Y: 2, Z: 3}, Occupancy: 1, Element: "N"},
		{Index: 1, Serial: 2, Name: "CA", ResidueName: "ALA", ChainID: "A", ResidueSeq: 1, Position: geometry.Vec3{X: 2, Y: 2, Z: 3}, Occupancy: 1, Element: "C"},
	}

	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM atoms WHERE structure_id = $1")).
		WithArgs(testStructureID).
		WillReturnResult(sqlmock.NewResult(0, 5))
	prep := s.mock.ExpectPrepare(`COPY "atoms"`)
	prep.ExpectExec().
		WithArgs(testStructureID, 0, 1, "N", "", "ALA", "A", 1, "", 1.0, 2.0, 3.0, 1.0, 0.0, "N", 0.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(testStructureID, 1, 2, "CA", "", "ALA", "A", 1, "", 2.0, 2.0, 3.0, 1.0, 0.0, "C", 0.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectCommit()

	s.NoError(s.repo.ReplaceAtoms(context.Background(), testStructureID, atoms))
}

func (s *StructureRepoTestSuite) TestReplaceAtoms_EmptyOnlyClears() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec("DELETE FROM atoms").WillReturnResult(sqlmock.NewResult(0, 2))
	s.mock.ExpectCommit()

	s.NoError(s.repo.ReplaceAtoms(context.Background(), testStructureID, nil))
}

func (s *StructureRepoTestSuite) TestReplaceAtoms_CopyFailureRollsBack() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec("DELETE FROM atoms").WillReturnResult(sqlmock.NewResult(0, 0))
	prep := s.mock.ExpectPrepare(`COPY "atoms"`)
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	s.mock.ExpectRollback()

	err := s.repo.ReplaceAtoms(context.Background(), testStructureID, []structure.Atom{{Element: "O"}})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func (s *StructureRepoTestSuite) TestListAtoms() {
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM atoms WHERE structure_id = $1 ORDER BY atom_index")).
		WithArgs(testStructureID).
		WillReturnRows(sqlmock.NewRows([]string{
			"atom_index", "serial", "name", "alt_loc", "res_name", "chain_id", "res_seq", "i_code",
			"x", "y", "z", "occupancy", "temp_factor", "element", "charge",
		}).
			AddRow(0, 1, "OD1", "", "ASP", "B", 45, "", 1.5, -2.0, 0.25, 1.0, 12.5, "O", -0.5).
			AddRow(1, 2, "ZN", "", "ZN", "B", 301, "", 4.0, 4.0, 4.0, 1.0, 20.0, "Zn", 2.0))

	atoms, err := s.repo.ListAtoms(context.Background(), testStructureID)
	s.Require().NoError(err)
	s.Require().Len(atoms, 2)
	s.Equal(geometry.Vec3{X: 1.5, Y: -2, Z: 0.25}, atoms[0].Position)
	s.Equal("ASP", atoms[0].ResidueName)
	s.Equal(45, atoms[0].ResidueSeq)
	s.Equal(2.0, atoms[1].Charge)
}

func (s *StructureRepoTestSuite) TestListAtoms_Empty() {
	s.mock.ExpectQuery("FROM atoms").
		WillReturnRows(sqlmock.NewRows([]string{"atom_index"}))

	atoms, err := s.repo.ListAtoms(context.Background(), testStructureID)
	s.Require().NoError(err)
	s.NotNil(atoms)
	s.Empty(atoms)
}

func (s *StructureRepoTestSuite) TestReplaceBonds() {
	bonds := []structure.Bond{structure.NewBond(1, 0, structure.BondDouble, 1.4)}

	s.mock.ExpectBegin()
	s.mock.ExpectExec("DELETE FROM bonds").WillReturnResult(sqlmock.NewResult(0, 0))
	prep := s.mock.ExpectPrepare(`COPY "bonds"`)
	prep.ExpectExec().
		WithArgs(testStructureID, 0, 1, "double", 2.0, 1.4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectCommit()

	s.NoError(s.repo.ReplaceBonds(context.Background(), testStructureID, bonds))
}

func (s *StructureRepoTestSuite) TestListBonds() {
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM bonds WHERE structure_id = $1 ORDER BY atom1_index, atom2_index")).
		WithArgs(testStructureID).
		WillReturnRows(sqlmock.NewRows([]string{"atom1_index", "atom2_index", "type", "bond_order", "distance"}).
			AddRow(0, 1, "double", 2.0, 1.4).
			AddRow(1, 2, "single", 1.0, 1.2))

	bonds, err := s.repo.ListBonds(context.Background(), testStructureID)
	s.Require().NoError(err)
	s.Require().Len(bonds, 2)
	s.Equal(structure.BondDouble, bonds[0].Type)
	s.Equal(2, bonds[1].Atom2Index)
}

func (s *StructureRepoTestSuite) TestListBonds_QueryError() {
	s.mock.ExpectQuery("FROM bonds").WillReturnError(errors.New("timeout"))

	_, err := s.repo.ListBonds(context.Background(), testStructureID)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}
