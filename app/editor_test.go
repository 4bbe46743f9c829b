package app_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/artpar/dbedit/adapters/metrics"
	"github.com/artpar/dbedit/app"
	appmock "github.com/artpar/dbedit/app/mock"
	"github.com/artpar/dbedit/core/form"
	"github.com/artpar/dbedit/core/schema"
	"github.com/artpar/dbedit/domain/listing"
	"github.com/artpar/dbedit/domain/record"
	dberrors "github.com/artpar/dbedit/pkg/errors"
)

const mobDB = `Header:
  Type: MOB_DB
  Version: 4
Body:
  - Id: 1002
    AegisName: PORING
    Name: Poring
    Level: 1
    Hp: 55
    Drops:
      - Item: Jellopy
        Rate: 7000
  - Id: 1001
    AegisName: SCORPION
    Name: Scorpion
    Level: 16
  - Id: 1004
    AegisName: HORNET
    Name: Hornet
    Level: 11
`

type EditorTestSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	confirmer *appmock.MockConfirmer
	editor    *app.Editor
	dir       string
	path      string
}

func (s *EditorTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.confirmer = appmock.NewMockConfirmer(s.ctrl)

	s.dir = s.T().TempDir()
	s.path = filepath.Join(s.dir, "mob_db.yml")
	s.Require().NoError(os.WriteFile(s.path, []byte(mobDB), 0o644))

	s.editor = app.NewEditor(app.EditorOptions{
		Logger:  zerolog.Nop(),
		Metrics: metrics.NewWithRegistry(prometheus.NewRegistry()),
	})
	s.Require().NoError(s.editor.Open(s.path))
}

func (s *EditorTestSuite) TearDownTest() {
	s.editor.Close()
	s.ctrl.Finish()
}

func TestEditorTestSuite(t *testing.T) {
	suite.Run(t, new(EditorTestSuite))
}

func (s *EditorTestSuite) ids() []string {
	var out []string
	for _, row := range s.editor.Rows() {
		out = append(out, row.ID)
	}
	return out
}

func (s *EditorTestSuite) TestOpen() {
	s.Equal("mob", s.editor.Profile().Name)
	s.Equal([]string{"1001", "1002", "1004"}, s.ids())
	s.False(s.editor.Dirty())

	_, ok := s.editor.Selected()
	s.False(ok)

	for i, row := range s.editor.Rows() {
		s.Equal(i, row.Index)
	}
}

func (s *EditorTestSuite) TestOpenFailureKeepsDocument() {
	bad := filepath.Join(s.dir, "item_db.yml")
	s.Require().NoError(os.WriteFile(bad, []byte("Header:\n  Type: ITEM_DB\n"), 0o644))

	editor := app.NewEditor(app.EditorOptions{Logger: zerolog.Nop(), Profile: schema.Mob()})
	s.Require().NoError(editor.Open(s.path))

	err := editor.Open(bad)
	s.Require().Error(err)
	s.True(dberrors.IsFormat(err))
	s.Equal(s.path, editor.Path())
	s.Len(editor.Rows(), 3)

	err = editor.Open(filepath.Join(s.dir, "missing.yml"))
	s.True(dberrors.IsIO(err))
	s.Len(editor.Rows(), 3)
}

func (s *EditorTestSuite) TestOpenResetsState() {
	s.Require().NoError(s.editor.Sort(listing.KeyName))
	s.Require().NoError(s.editor.Search("por"))
	s.Require().NoError(s.editor.Select(1))
	_, err := s.editor.AddNew()
	s.Require().NoError(err)

	s.Require().NoError(s.editor.Reload())

	s.Equal(listing.DefaultState(), s.editor.SortState())
	s.Empty(s.editor.SearchTerm())
	s.False(s.editor.Dirty())
	_, ok := s.editor.Selected()
	s.False(ok)
	s.Len(s.editor.Rows(), 3)
}

func (s *EditorTestSuite) TestSort() {
	s.Run("name ascending", func() {
		s.Require().NoError(s.editor.Sort(listing.KeyName))
		s.Equal([]string{"1004", "1002", "1001"}, s.ids())
		s.False(s.editor.SortState().Descending)
	})

	s.Run("same key flips direction", func() {
		s.Require().NoError(s.editor.Sort(listing.KeyName))
		s.Equal([]string{"1001", "1002", "1004"}, s.ids())
		s.True(s.editor.SortState().Descending)
	})

	s.Run("new key resets to ascending", func() {
		s.Require().NoError(s.editor.Sort(listing.KeyID))
		s.Equal([]string{"1001", "1002", "1004"}, s.ids())
		s.False(s.editor.SortState().Descending)
	})

	s.Run("rows address storage", func() {
		s.Require().NoError(s.editor.Sort(listing.KeyID))
		for _, row := range s.editor.Rows() {
			rec, err := s.editor.Record(row.Index)
			s.Require().NoError(err)
			s.Equal(row.AegisName, rec.String(record.KeyAegisName))
		}
	})
}

func (s *EditorTestSuite) TestSortKeepsSelectedRecord() {
	s.Require().NoError(s.editor.Select(0)) // SCORPION
	s.Require().NoError(s.editor.Sort(listing.KeyName))

	i, ok := s.editor.Selected()
	s.Require().True(ok)
	rec, err := s.editor.Record(i)
	s.Require().NoError(err)
	s.Equal("SCORPION", rec.String(record.KeyAegisName))
}

func (s *EditorTestSuite) TestSearch() {
	tests := []struct {
		name string
		term string
		want []string
	}{
		{"exact id", "1002", []string{"1002"}},
		{"aegis name substring", "HOR", []string{"1004"}},
		{"case insensitive", "poring", []string{"1002"}},
		{"absent", "zzz", nil},
		{"empty matches all", "", []string{"1001", "1002", "1004"}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Require().NoError(s.editor.Search(tt.term))
			s.Equal(tt.want, s.ids())
		})
	}
}

func (s *EditorTestSuite) TestSearchDropsHiddenSelection() {
	s.Require().NoError(s.editor.Select(0))
	s.Require().NoError(s.editor.Search("PORING"))

	_, ok := s.editor.Selected()
	s.False(ok)
}

func (s *EditorTestSuite) TestWhere() {
	s.Require().NoError(s.editor.Where("Level > 10"))
	s.Equal([]string{"1001", "1004"}, s.ids())

	s.Require().NoError(s.editor.Search("HORNET"))
	s.Equal([]string{"1004"}, s.ids())

	err := s.editor.Where("Level >")
	s.Require().Error(err)
	s.Equal(dberrors.CodeInvalidArgument, dberrors.GetCode(err))
	s.Equal("Level > 10", s.editor.WhereExpression())
	s.Equal([]string{"1004"}, s.ids())

	s.Require().NoError(s.editor.Where(""))
	s.Require().NoError(s.editor.Search(""))
	s.Len(s.editor.Rows(), 3)
}

func (s *EditorTestSuite) TestSelect() {
	s.Require().NoError(s.editor.Search("PORING"))

	err := s.editor.Select(0)
	s.True(dberrors.IsNotFound(err))

	s.Require().NoError(s.editor.Select(1))
	i, ok := s.editor.Selected()
	s.True(ok)
	s.Equal(1, i)
}

func (s *EditorTestSuite) TestFormRequiresSelection() {
	_, err := s.editor.Form()
	s.True(dberrors.IsFailedPrecondition(err))

	_, err = s.editor.SaveRecord(&form.Form{})
	s.True(dberrors.IsFailedPrecondition(err))
}

func (s *EditorTestSuite) TestSaveRecordCoercesNumbers() {
	s.Require().NoError(s.editor.Select(1))
	f, err := s.editor.Form()
	s.Require().NoError(err)

	s.Require().NoError(f.Set("Hp", "abc"))
	rec, err := s.editor.SaveRecord(f)
	s.Require().NoError(err)

	v, ok := rec.Get("Hp")
	s.True(ok)
	s.Equal(0, v)
	s.True(s.editor.Dirty())

	stored, err := s.editor.Record(1)
	s.Require().NoError(err)
	s.Same(rec, stored)

	i, _ := s.editor.Selected()
	s.Equal(1, i)
}

func (s *EditorTestSuite) TestSaveRecordStrictNumbers() {
	s.editor.SetFormOptions(form.Options{StrictNumbers: true})
	s.Require().NoError(s.editor.Select(1))
	before, _ := s.editor.Record(1)

	f, err := s.editor.Form()
	s.Require().NoError(err)
	s.Require().NoError(f.Set("Hp", "abc"))

	_, err = s.editor.SaveRecord(f)
	s.True(dberrors.IsValidation(err))

	after, _ := s.editor.Record(1)
	s.Same(before, after)
	s.False(s.editor.Dirty())
}

func (s *EditorTestSuite) TestSaveRecordKeepsRetainedKeys() {
	s.Require().NoError(s.editor.Select(0))
	f, err := s.editor.Form()
	s.Require().NoError(err)

	s.Require().NoError(f.Set("Name", ""))
	rec, err := s.editor.SaveRecord(f)
	s.Require().NoError(err)

	s.True(rec.Has(record.KeyID))
	s.True(rec.Has(record.KeyAegisName))
	s.True(rec.Has(record.KeyName))
	s.False(rec.Has("Drops"))
}

func (s *EditorTestSuite) TestSaveRecordClearsSelectionWhenHidden() {
	s.Require().NoError(s.editor.Search("PORING"))
	s.Require().NoError(s.editor.Select(1))

	f, err := s.editor.Form()
	s.Require().NoError(err)
	s.Require().NoError(f.Set("AegisName", "SLIME"))
	_, err = s.editor.SaveRecord(f)
	s.Require().NoError(err)

	_, ok := s.editor.Selected()
	s.False(ok)
	s.Empty(s.editor.Rows())

	rec, err := s.editor.Record(1)
	s.Require().NoError(err)
	s.Equal("SLIME", rec.String(record.KeyAegisName))
	s.True(s.editor.Dirty())
}

func (s *EditorTestSuite) TestAddNew() {
	s.Run("next identifier", func() {
		index, err := s.editor.AddNew()
		s.Require().NoError(err)
		s.Equal(3, index)

		rec, _ := s.editor.Record(index)
		s.Equal(1005, rec.Int(record.KeyID))
		s.Equal("MOB_1005", rec.String(record.KeyAegisName))
		s.Equal("New Mob", rec.String(record.KeyName))

		i, ok := s.editor.Selected()
		s.True(ok)
		s.Equal(index, i)
		s.True(s.editor.Dirty())
	})

	s.Run("keeps descending order", func() {
		s.Require().NoError(s.editor.Sort(listing.KeyID))
		s.Require().True(s.editor.SortState().Descending)

		index, err := s.editor.AddNew()
		s.Require().NoError(err)
		s.Equal(0, index)
		s.True(s.editor.SortState().Descending)
		s.Equal("1006", s.editor.Rows()[0].ID)
	})

	s.Run("hidden by search", func() {
		s.Require().NoError(s.editor.Search("PORING"))
		_, err := s.editor.AddNew()
		s.Require().NoError(err)

		_, ok := s.editor.Selected()
		s.False(ok)
		s.Len(s.editor.Rows(), 1)
	})
}

func (s *EditorTestSuite) TestAddNewRejectsIdentifierOverflow() {
	rec, err := s.editor.Record(2)
	s.Require().NoError(err)
	rec.Set(record.KeyID, math.MaxInt)

	index, err := s.editor.AddNew()
	s.True(dberrors.IsValidation(err), "want validation error, got %v", err)
	s.Equal(app.NoSelection, index)
	s.Len(s.editor.Document().Records, 3)
	s.False(s.editor.Dirty())
}

func (s *EditorTestSuite) TestAddNewEmptyDocument() {
	s.editor.NewDocument(schema.Item())

	index, err := s.editor.AddNew()
	s.Require().NoError(err)
	rec, _ := s.editor.Record(index)
	s.Equal(501, rec.Int(record.KeyID))
	s.Equal("New Item", rec.String(record.KeyName))

	s.editor.NewDocument(schema.Mob())
	index, err = s.editor.AddNew()
	s.Require().NoError(err)
	rec, _ = s.editor.Record(index)
	s.Equal(1001, rec.Int(record.KeyID))
}

func (s *EditorTestSuite) TestDelete() {
	s.Run("declined", func() {
		s.confirmer.EXPECT().Confirm(gomock.Any()).Return(false, nil)

		deleted, err := s.editor.Delete(1, s.confirmer)
		s.Require().NoError(err)
		s.False(deleted)
		s.Len(s.editor.Rows(), 3)
		s.False(s.editor.Dirty())
	})

	s.Run("confirmed", func() {
		s.Require().NoError(s.editor.Select(1))
		s.confirmer.EXPECT().Confirm("Delete 1002 (PORING)?").Return(true, nil)

		deleted, err := s.editor.Delete(1, s.confirmer)
		s.Require().NoError(err)
		s.True(deleted)
		s.Equal([]string{"1001", "1004"}, s.ids())
		s.True(s.editor.Dirty())

		_, ok := s.editor.Selected()
		s.False(ok)
	})

	s.Run("confirm error", func() {
		s.confirmer.EXPECT().Confirm(gomock.Any()).Return(false, errors.New("input closed"))

		_, err := s.editor.Delete(0, s.confirmer)
		s.Error(err)
		s.Len(s.editor.Rows(), 2)
	})

	s.Run("out of range", func() {
		_, err := s.editor.Delete(9, s.confirmer)
		s.True(dberrors.IsNotFound(err))
	})
}

func (s *EditorTestSuite) TestFind() {
	i, err := s.editor.Find(1004)
	s.Require().NoError(err)
	s.Equal(2, i)

	_, err = s.editor.Find(42)
	s.True(dberrors.IsNotFound(err))
}

func (s *EditorTestSuite) TestSaveRoundTrip() {
	s.Require().NoError(s.editor.Select(0))
	f, err := s.editor.Form()
	s.Require().NoError(err)
	s.Require().NoError(f.Set("Level", "20"))
	_, err = s.editor.SaveRecord(f)
	s.Require().NoError(err)

	s.Require().NoError(s.editor.Save())
	s.False(s.editor.Dirty())

	reopened := app.NewEditor(app.EditorOptions{Logger: zerolog.Nop()})
	s.Require().NoError(reopened.Open(s.path))
	rec, _ := reopened.Record(0)
	s.Equal(20, rec.Int("Level"))

	drops, _ := reopened.Record(1)
	s.Equal([]record.Drop{{Item: "Jellopy", Rate: 7000}}, record.DropsFrom(mustGet(drops, "Drops")))
}

func (s *EditorTestSuite) TestSaveWithoutPath() {
	s.editor.NewDocument(schema.Item())
	_, err := s.editor.AddNew()
	s.Require().NoError(err)

	err = s.editor.Save()
	s.True(dberrors.IsFailedPrecondition(err))

	path := filepath.Join(s.dir, "item_db.yml")
	s.Require().NoError(s.editor.SaveAs(path))
	s.Equal(path, s.editor.Path())
	s.False(s.editor.Dirty())

	reopened := app.NewEditor(app.EditorOptions{Logger: zerolog.Nop()})
	s.Require().NoError(reopened.Open(path))
	s.Equal("item", reopened.Profile().Name)
	s.Len(reopened.Rows(), 1)
}

func (s *EditorTestSuite) TestValidate() {
	result, err := s.editor.Validate()
	s.Require().NoError(err)
	s.True(result.Valid)

	empty := app.NewEditor(app.EditorOptions{Logger: zerolog.Nop()})
	_, err = empty.Validate()
	s.True(dberrors.IsFailedPrecondition(err))
}

func (s *EditorTestSuite) TestChangedOnDisk() {
	s.Require().NoError(s.editor.Watch())

	s.Require().NoError(s.editor.Save())
	time.Sleep(100 * time.Millisecond)
	s.False(s.editor.ChangedOnDisk())

	s.Require().NoError(os.WriteFile(s.path, []byte(mobDB+"  - Id: 1010\n    AegisName: EXTRA\n"), 0o644))
	s.Eventually(s.editor.ChangedOnDisk, 3*time.Second, 20*time.Millisecond)

	s.Require().NoError(s.editor.Reload())
	s.False(s.editor.ChangedOnDisk())
	s.Len(s.editor.Rows(), 4)
}

func mustGet(m *record.Map, key string) any {
	v, _ := m.Get(key)
	return v
}
