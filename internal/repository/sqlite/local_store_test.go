package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/vytor/kotoflash/internal/repository"
	"github.com/vytor/kotoflash/internal/repository/sqlite"
	"github.com/vytor/kotoflash/internal/testutil"
)

type LocalStoreSuite struct {
	suite.Suite
	db    *sql.DB
	store repository.LocalStore
}

func (s *LocalStoreSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.store = sqlite.NewLocalStore(s.db)
}

func (s *LocalStoreSuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *LocalStoreSuite) TestGetMissingKey() {
	value, err := s.store.Get(context.Background(), repository.ProgressKey)
	s.Require().NoError(err)
	s.Nil(value)
}

func (s *LocalStoreSuite) TestPutOverwrites() {
	ctx := context.Background()

	s.Require().NoError(s.store.Put(ctx, repository.ProgressKey, []byte(`{"v":1}`)))
	s.Require().NoError(s.store.Put(ctx, repository.ProgressKey, []byte(`{"v":2}`)))

	value, err := s.store.Get(ctx, repository.ProgressKey)
	s.Require().NoError(err)
	s.Equal(`{"v":2}`, string(value))

	var rows int
	s.Require().NoError(s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv_store`).Scan(&rows))
	s.Equal(1, rows)
}

func (s *LocalStoreSuite) TestKeysAreIndependent() {
	ctx := context.Background()

	s.Require().NoError(s.store.Put(ctx, "a", []byte("1")))
	s.Require().NoError(s.store.Put(ctx, "b", []byte("2")))

	a, err := s.store.Get(ctx, "a")
	s.Require().NoError(err)
	s.Equal("1", string(a))
}

func (s *LocalStoreSuite) TestPutFailsOnClosedDB() {
	s.Require().NoError(s.db.Close())
	s.Error(s.store.Put(context.Background(), repository.ProgressKey, []byte("x")))

	// Reopen so TearDownTest can close cleanly.
	s.db = testutil.NewTestDB(s.T())
}

func TestLocalStoreSuite(t *testing.T) {
	suite.Run(t, new(LocalStoreSuite))
}
