// Package scheduler runs the background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/communication"
	"github.com/theepangnani/emai-dev-03-sub000/core/invite"
	"github.com/theepangnani/emai-dev-03-sub000/core/reminder"
)

const (
	JobReminders    = "reminders"
	JobSync         = "communications-sync"
	JobExpireInvite = "invite-expiry"

	inviteExpirySchedule = "@hourly"
)

type Job struct {
	Name string
	Spec string // cron spec, standard 5 fields or descriptors like @daily
	Run  func(ctx context.Context) error
}

// Scheduler is built once at process entry, started with Start and stopped with Stop.
type Scheduler struct {
	cron    *cron.Cron
	logger  core.Logger
	timeout time.Duration
	jobs    map[string]Job
	ctx     context.Context
	cancel  context.CancelFunc
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(fmt.Sprint("cron: ", msg, " ", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprint("cron: ", msg, " ", keysAndValues), err)
}

func New(logger core.Logger, timeout time.Duration, jobs ...Job) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		timeout: timeout,
		jobs:    make(map[string]Job, len(jobs)),
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, job := range jobs {
		if _, dup := s.jobs[job.Name]; dup {
			cancel()
			return nil, errors.Errorf("duplicate job %q", job.Name)
		}
		job := job
		if _, err := s.cron.AddFunc(job.Spec, func() { _ = s.run(s.ctx, job) }); err != nil {
			cancel()
			return nil, errors.Wrapf(err, "scheduling job %q", job.Name)
		}
		s.jobs[job.Name] = job
	}
	return s, nil
}

// NewDefault schedules the reminder, sync and invite expiry jobs.
func NewDefault(
	conf *core.Config,
	logger core.Logger,
	reminderSvc reminder.Service,
	commSvc communication.Service,
	inviteSvc invite.Service,
) (*Scheduler, error) {
	return New(logger, conf.Jobs.Timeout,
		Job{Name: JobReminders, Spec: conf.Jobs.ReminderSchedule, Run: remindersJob(reminderSvc, logger)},
		Job{Name: JobSync, Spec: conf.Jobs.SyncSchedule, Run: commSvc.SyncAll},
		Job{Name: JobExpireInvite, Spec: inviteExpirySchedule, Run: expireInvitesJob(inviteSvc, logger)},
	)
}

func remindersJob(svc reminder.Service, logger core.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		today := core.Now()
		na, err := svc.SendAssignmentReminders(ctx, today)
		if err != nil {
			return errors.Wrap(err, "sending assignment reminders")
		}
		nt, err := svc.SendTaskReminders(ctx, today)
		if err != nil {
			return errors.Wrap(err, "sending task reminders")
		}
		logger.Info(fmt.Sprintf("reminders sent: %d assignments, %d tasks", na, nt))
		return nil
	}
}

func expireInvitesJob(svc invite.Service, logger core.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		n, err := svc.ExpireStale(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info(fmt.Sprintf("%d invites expired", n))
		}
		return nil
	}
}

// run executes job within the timeout. Failures are logged and returned.
func (s *Scheduler) run(ctx context.Context, job Job) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := job.Run(ctx)
	if err != nil {
		s.logger.Error(fmt.Sprintf("job %s failed after %s", job.Name, time.Since(start)), err)
		return err
	}
	s.logger.Debug(fmt.Sprintf("job %s done in %s", job.Name, time.Since(start)))
	return nil
}

// RunJob runs the named job now, outside of its schedule.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return errors.Errorf("unknown job %q", name)
	}
	return s.run(ctx, job)
}

func (s *Scheduler) JobNames() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling new runs. The returned context is done once the running jobs have returned.
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	go func() {
		<-ctx.Done()
		s.cancel()
	}()
	return ctx
}
