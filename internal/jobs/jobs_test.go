package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_Validate(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{"categorize", Job{Type: JobTypeCategorize, BatchSize: 50}, false},
		{"analyze", Job{Type: JobTypeAnalyze}, false},
		{"ingest pending", Job{Type: JobTypeIngestPending}, false},
		{"ingest statement", Job{Type: JobTypeIngestStatement, StatementID: "st-1"}, false},
		{"ingest statement without id", Job{Type: JobTypeIngestStatement}, true},
		{"unknown type", Job{Type: "parse_document"}, true},
		{"negative batch", Job{Type: JobTypeCategorize, BatchSize: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("duplicate")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
	assert.Nil(t, Permanent(nil))
}

func TestRouter_Dispatch(t *testing.T) {
	r := NewRouter()
	var got *Job
	r.Handle(JobTypeAnalyze, func(ctx context.Context, job *Job) error {
		got = job
		return nil
	})

	job := &Job{ID: "j1", Type: JobTypeAnalyze}
	require.NoError(t, r.Dispatch(context.Background(), job))
	assert.Same(t, job, got)

	err := r.Dispatch(context.Background(), &Job{Type: JobTypeCategorize})
	assert.True(t, IsPermanent(err))
}
