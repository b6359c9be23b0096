package repositories

import (
	"context"
	"regexp"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/turtacn/BioDockViz/internal/domain/structure"
	pkgerrors "github.com/turtacn/BioDockViz/pkg/errors"
)

var interactionRowColumns = []string{
	"interaction_type", "atom1_index", "atom2_index", "distance", "angle",
	"atom1_residue", "atom1_residue_seq", "atom2_residue", "atom2_residue_seq", "is_predicted", "confidence",
}

func (s *StructureRepoTestSuite) TestReplaceInteractions() {
	angle := 160.0
	list := []structure.Interaction{
		{Kind: structure.KindHydrogenBond, Atom1Index: 0, Atom2Index: 3, Distance: 2.1, Atom1Residue: "SER", Atom1ResidueSeq: 5, Atom2Residue: "LIG", Atom2ResidueSeq: 1, Confidence: 1},
		{Kind: structure.KindSaltBridge, Atom1Index: 1, Atom2Index: 2, Distance: 3.5, Angle: &angle, Confidence: 0.8},
	}

	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM interactions WHERE structure_id = $1")).
		WithArgs(testStructureID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	prep := s.mock.ExpectPrepare(`COPY "interactions"`)
	prep.ExpectExec().
		WithArgs(testStructureID, "hydrogen_bond", 0, 3, 2.1, nil, "SER", 5, "LIG", 1, false, 1.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs(testStructureID, "salt_bridge", 1, 2, 3.5, 160.0, "", 0, "", 0, false, 0.8).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectCommit()

	s.NoError(s.repo.ReplaceInteractions(context.Background(), testStructureID, list))
}

func (s *StructureRepoTestSuite) TestReplaceInteractions_MalformedID() {
	err := s.repo.ReplaceInteractions(context.Background(), "abc", nil)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeStructureNotFound))
}

func (s *StructureRepoTestSuite) TestListInteractions_All() {
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM interactions WHERE structure_id = $1 ORDER BY id")).
		WithArgs(testStructureID).
		WillReturnRows(sqlmock.NewRows(interactionRowColumns).
			AddRow("vdw_contact", 0, 2, 2.6, nil, "LIG", 1, "LIG", 1, false, 1.0).
			AddRow("hydrogen_bond", 3, 7, 1.9, 155.0, "SER", 5, "ASP", 9, true, 0.7))

	list, err := s.repo.ListInteractions(context.Background(), testStructureID, "")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(structure.KindVdWContact, list[0].Kind)
	s.Nil(list[0].Angle)
	s.Require().NotNil(list[1].Angle)
	s.Equal(155.0, *list[1].Angle)
	s.True(list[1].IsPredicted)
}

func (s *StructureRepoTestSuite) TestListInteractions_ByKind() {
	s.mock.ExpectQuery(regexp.QuoteMeta("AND interaction_type = $2 ORDER BY id")).
		WithArgs(testStructureID, "salt_bridge").
		WillReturnRows(sqlmock.NewRows(interactionRowColumns))

	list, err := s.repo.ListInteractions(context.Background(), testStructureID, structure.KindSaltBridge)
	s.Require().NoError(err)
	s.Empty(list)
}
