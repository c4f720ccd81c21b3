package report

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/avito-tech/gravure/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	name string
	err  error

	mu      sync.Mutex
	records []domain.JobRecord
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Record(_ context.Context, rec domain.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func TestReporterFansOut(t *testing.T) {
	kafka := &memorySink{name: "kafka"}
	db := &memorySink{name: "postgres", err: errors.New("connection refused")}

	r := New(16, 0, nil, kafka, db)

	r.Report(domain.Result{JobID: "a", ImageID: 1, State: domain.JobCompleted})
	r.Report(domain.Result{JobID: "b", ImageID: 2, State: domain.JobFailed, Err: errors.New("boom")})

	require.NoError(t, r.Close(context.Background()))

	require.Len(t, kafka.records, 2)
	assert.Equal(t, "a", kafka.records[0].JobID)
	assert.Equal(t, "boom", kafka.records[1].Error)

	// A failing sink does not stop delivery to the others.
	assert.Len(t, db.records, 2)
}

func TestReportAfterCloseIsIgnored(t *testing.T) {
	s := &memorySink{name: "mem"}
	r := New(1, 0, nil, s)
	require.NoError(t, r.Close(context.Background()))
	require.NoError(t, r.Close(context.Background()))

	r.Report(domain.Result{JobID: "late"})
	assert.Empty(t, s.records)
}

func TestReporterWithoutSinks(t *testing.T) {
	r := New(0, 0, nil)
	r.Report(domain.Result{JobID: "x"})
	require.NoError(t, r.Close(context.Background()))
}
