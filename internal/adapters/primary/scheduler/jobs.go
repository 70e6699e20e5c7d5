package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// Poller is the mailbox cycle the scheduler drives.
type Poller interface {
	Poll(ctx context.Context) error
}

// PollerFunc adapts a function to Poller.
type PollerFunc func(ctx context.Context) error

func (f PollerFunc) Poll(ctx context.Context) error { return f(ctx) }

// Intervals for the standard jobs. A zero AutoAssign or MailPoll disables that job.
type Intervals struct {
	Breaches    time.Duration
	Escalations time.Duration
	AutoAssign  time.Duration
	Archive     time.Duration
	MailPoll    time.Duration
}

// Services are the operations the standard jobs invoke.
type Services struct {
	SLA        ports.SLAService
	Assignment ports.AssignmentService
	Tickets    ports.TicketService
	Mailbox    Poller
}

// Register adds the breach, escalation, auto-assign, archive and mailbox jobs.
func (s *Scheduler) Register(svc Services, iv Intervals) {
	s.Add(Job{Name: "sla_breach_scan", Interval: iv.Breaches, Run: counted(s.logger, "breached", svc.SLA.ScanBreaches)})
	s.Add(Job{Name: "sla_escalation_scan", Interval: iv.Escalations, Run: counted(s.logger, "escalated", svc.SLA.ScanEscalations)})
	s.Add(Job{Name: "archive_closed", Interval: iv.Archive, Run: counted(s.logger, "archived", svc.Tickets.ArchiveClosed)})

	if iv.AutoAssign > 0 && svc.Assignment != nil {
		s.Add(Job{Name: "auto_assign", Interval: iv.AutoAssign, Run: counted(s.logger, "assigned", svc.Assignment.ProcessUnassigned)})
	}
	if iv.MailPoll > 0 && svc.Mailbox != nil {
		s.Add(Job{Name: "mailbox_poll", Interval: iv.MailPoll, Run: svc.Mailbox.Poll})
	}
}

// counted wraps a scan that reports how many tickets it touched.
func counted(logger *slog.Logger, what string, scan func(ctx context.Context) (int, error)) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		n, err := scan(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.InfoContext(ctx, "scan applied changes", what, n)
		}
		return nil
	}
}
