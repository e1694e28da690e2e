//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"keyward/internal/audit"
	"keyward/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *audit.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())

	store, err := audit.NewPostgresStore(s.postgres.URL)
	s.Require().NoError(err)
	s.store = store
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *PostgresStoreSuite) TestAppendAndList() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	events := []audit.Event{
		{Timestamp: base, Action: audit.ActionUserRegistered, Subject: "id-1", ClientKey: "203.0.113.7"},
		{Timestamp: base.Add(time.Second), Action: audit.ActionLoginFailed, Subject: "id-1", ClientKey: "203.0.113.7", Reason: "password mismatch"},
		{Timestamp: base.Add(2 * time.Second), Action: audit.ActionLoginSucceeded, Subject: "id-2"},
	}
	for _, e := range events {
		s.Require().NoError(s.store.Append(ctx, e))
	}

	got, err := s.store.ListBySubject(ctx, "id-1")
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(audit.ActionUserRegistered, got[0].Action)
	s.Equal(audit.ActionLoginFailed, got[1].Action)
	s.Equal("password mismatch", got[1].Reason)
	s.WithinDuration(base, got[0].Timestamp, time.Millisecond)

	got, err = s.store.ListBySubject(ctx, "id-3")
	s.Require().NoError(err)
	s.Empty(got)
}
