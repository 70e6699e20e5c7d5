package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/service-desk-engine/internal/core/mocks"
)

func TestScheduler_RunsJobsUntilCancelled(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32
	s.Add(Job{Name: "tick", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)

	cancel()
	s.Wait()
	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestScheduler_FailuresAndPanicsDoNotStopJob(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32
	s.Add(Job{Name: "flaky", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		switch runs.Add(1) {
		case 1:
			return errors.New("transient")
		case 2:
			panic("boom")
		}
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.Wait()
	}()
	s.Start(ctx)

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestScheduler_IgnoresInvalidJobs(t *testing.T) {
	s := New(nil)
	s.Add(Job{Name: "no interval", Run: func(context.Context) error { return nil }})
	s.Add(Job{Name: "no func", Interval: time.Second})
	assert.Empty(t, s.jobs)
}

func TestScheduler_RunDoesNotSeeCancellation(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawErr error
	s.runOnce(ctx, Job{Name: "scan", Run: func(ctx context.Context) error {
		sawErr = ctx.Err()
		return nil
	}})
	assert.NoError(t, sawErr)
}

func TestScheduler_Register(t *testing.T) {
	sla := mocks.NewMockSLAService()
	assignment := mocks.NewMockAssignmentService()
	tickets := mocks.NewMockTicketService()

	var breaches, archives, assigns atomic.Int32
	sla.On("ScanBreaches", mock.Anything).Return(1, nil).Run(func(mock.Arguments) { breaches.Add(1) })
	sla.On("ScanEscalations", mock.Anything).Return(0, nil)
	tickets.On("ArchiveClosed", mock.Anything).Return(0, errors.New("db down")).Run(func(mock.Arguments) { archives.Add(1) })
	assignment.On("ProcessUnassigned", mock.Anything).Return(2, nil).Run(func(mock.Arguments) { assigns.Add(1) })

	var polls atomic.Int32
	s := New(nil)
	s.Register(Services{
		SLA:        sla,
		Assignment: assignment,
		Tickets:    tickets,
		Mailbox: PollerFunc(func(context.Context) error {
			polls.Add(1)
			return nil
		}),
	}, Intervals{
		Breaches:    5 * time.Millisecond,
		Escalations: 5 * time.Millisecond,
		AutoAssign:  5 * time.Millisecond,
		Archive:     5 * time.Millisecond,
		MailPoll:    5 * time.Millisecond,
	})
	require.Len(t, s.jobs, 5)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return polls.Load() >= 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return breaches.Load() > 0 && archives.Load() > 0 && assigns.Load() > 0
	}, time.Second, time.Millisecond)
	cancel()
	s.Wait()
}

func TestScheduler_RegisterSkipsDisabledJobs(t *testing.T) {
	s := New(nil)
	s.Register(Services{
		SLA:     mocks.NewMockSLAService(),
		Tickets: mocks.NewMockTicketService(),
	}, Intervals{
		Breaches:    time.Minute,
		Escalations: time.Minute,
		Archive:     time.Hour,
	})

	var names []string
	for _, j := range s.jobs {
		names = append(names, j.Name)
	}
	assert.Equal(t, []string{"sla_breach_scan", "sla_escalation_scan", "archive_closed"}, names)
}
