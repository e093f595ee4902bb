package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/energosync/internal/orchestrator"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(ctx context.Context) (*orchestrator.CycleReport, error) {
	r.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("refresh without deadline")
	}
	return &orchestrator.CycleReport{}, r.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestNewSchedulerDefaultSchedule(t *testing.T) {
	s := NewScheduler(context.Background(), &countingRefresher{}, "", testLogger())
	assert.Equal(t, DefaultSchedule, s.schedule)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(context.Background(), &countingRefresher{}, "every now and then", testLogger())
	assert.Error(t, s.Start())
}

func TestStartRegistersJob(t *testing.T) {
	s := NewScheduler(context.Background(), &countingRefresher{}, "@every 1h", testLogger())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Len(t, s.cron.Entries(), 1)
}

func TestRefresh(t *testing.T) {
	refresher := &countingRefresher{err: errors.New("accounts unavailable")}
	s := NewScheduler(context.Background(), refresher, DefaultSchedule, testLogger())

	s.refresh()
	s.refresh()
	assert.Equal(t, int32(2), refresher.calls.Load())
}
