// Package scheduler drives the polling pipeline: a fixed-interval tick scans
// the roster for newly published semesters, then drains the detection queue
// through notification, archival, persistence and high-water-mark
// advancement. At most one run is ever in flight.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Naveenkumar-R96/excel-result-1/internal/config"
	"github.com/Naveenkumar-R96/excel-result-1/internal/fetcher"
	"github.com/Naveenkumar-R96/excel-result-1/internal/logger"
	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
	"github.com/Naveenkumar-R96/excel-result-1/internal/notify"
	"github.com/Naveenkumar-R96/excel-result-1/internal/result"
	"github.com/Naveenkumar-R96/excel-result-1/internal/store"
)

// Roster is the student-list boundary. Advancement replaces the notified set
// with the full published set, so a student who was several semesters behind
// catches up in one cycle.
type Roster interface {
	ListStudents(ctx context.Context) ([]model.Student, error)
	AdvanceNotifiedSemesters(ctx context.Context, regNo string, semesters []int, year int) error
}

// Scanner is the scan phase; satisfied by *fetcher.Fetcher.
type Scanner interface {
	Scan(ctx context.Context, roster []model.Student) fetcher.Report
}

// DrainQueue is the consuming side of the detection queue.
type DrainQueue interface {
	DequeueBatch(ctx context.Context, limit int) ([]model.DetectionJob, error)
	ClearInFlight(ctx context.Context, regNo string) error
}

// Notifier is satisfied by *notify.Dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, student *model.Student, msg notify.Message) (notify.Result, error)
}

// SnapshotStore is the subset of store.Store the drain phase needs.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, student *model.Student, outcome *model.Outcome, detectedSem int, status store.ChannelStatus) error
}

// Archiver keeps raw payloads; optional, best-effort.
type Archiver interface {
	ArchiveOutcome(ctx context.Context, regNo string, detectedSem int, outcome *model.Outcome) (string, error)
}

// Metrics is a point-in-time copy of the scheduler's run counters.
type Metrics struct {
	RunCount      int64
	SkippedTicks  int64
	LastRun       time.Time
	LastDuration  time.Duration
	TotalChecked  int64
	TotalNotified int64
	TotalErrors   int64
}

type Scheduler struct {
	cfg      *config.Config
	roster   Roster
	scanner  Scanner
	queue    DrainQueue
	notifier Notifier
	store    SnapshotStore
	archiver Archiver
	log      zerolog.Logger

	runMu     sync.Mutex // held for the duration of one run; TryLock gives single-flight
	metricsMu sync.Mutex
	metrics   Metrics
}

func New(cfg *config.Config, roster Roster, scanner Scanner, queue DrainQueue, notifier Notifier, snapshots SnapshotStore, archiver Archiver) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		roster:   roster,
		scanner:  scanner,
		queue:    queue,
		notifier: notifier,
		store:    snapshots,
		archiver: archiver,
		log:      logger.Component("scheduler"),
	}
}

// Start ticks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.log.Info().
		Dur("interval", s.cfg.Workers.Notifier.Interval).
		Msg("Starting notifier scheduler")

	if s.cfg.Workers.Notifier.RunOnStart {
		s.RunOnce(ctx)
	}

	ticker := time.NewTicker(s.cfg.Workers.Notifier.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Scheduler context cancelled")
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes one full scan+drain cycle unless a previous run is still
// in flight, in which case the tick is skipped entirely.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.runMu.TryLock() {
		s.log.Warn().Msg("Previous run still in flight, skipping tick")
		s.metricsMu.Lock()
		s.metrics.SkippedTicks++
		s.metricsMu.Unlock()
		return
	}
	defer s.runMu.Unlock()

	start := time.Now()

	// Soft watchdog: logs, never aborts.
	watchdog := time.AfterFunc(s.cfg.Workers.Notifier.WatchdogThreshold, func() {
		s.log.Error().
			Dur("threshold", s.cfg.Workers.Notifier.WatchdogThreshold).
			Msg("Run exceeding watchdog threshold")
	})

	defer func() {
		watchdog.Stop()
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("Run panicked")
		}
		s.metricsMu.Lock()
		s.metrics.RunCount++
		s.metrics.LastRun = start
		s.metrics.LastDuration = time.Since(start)
		s.metricsMu.Unlock()
	}()

	if err := s.run(ctx); err != nil {
		s.log.Error().Err(err).Msg("Run failed")
	}
}

func (s *Scheduler) run(ctx context.Context) error {
	s.log.Info().Msg("Run starting")

	roster, err := s.roster.ListStudents(ctx)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}
	if len(roster) == 0 {
		s.log.Info().Msg("No students on roster")
		return nil
	}

	report := s.scanner.Scan(ctx, roster)

	notified, drainErrs := s.drain(ctx)

	s.metricsMu.Lock()
	s.metrics.TotalChecked += int64(report.Checked)
	s.metrics.TotalNotified += int64(notified)
	s.metrics.TotalErrors += int64(report.Errors + drainErrs)
	s.metricsMu.Unlock()

	s.log.Info().
		Int("checked", report.Checked).
		Int("queued", report.Queued).
		Int("not_published", report.NotPublished).
		Int("skipped", report.Skipped).
		Int("scan_errors", report.Errors).
		Int("notified", notified).
		Int("drain_errors", drainErrs).
		Msg("Run completed")

	return nil
}

// drain pops fixed-size chunks off the detection queue and settles each chunk
// in parallel before popping the next.
func (s *Scheduler) drain(ctx context.Context) (notified, errs int) {
	batchSize := s.cfg.Workers.Notifier.BatchSize

	for {
		jobs, err := s.queue.DequeueBatch(ctx, batchSize)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to dequeue detections")
			errs++
		}

		// Jobs handed back alongside a dequeue error are already off the
		// Redis list; dropping them would lose their notifications and
		// strand their in-flight markers. Process them, then stop.
		if len(jobs) > 0 {
			var (
				wg sync.WaitGroup
				mu sync.Mutex
			)
			for i := range jobs {
				wg.Add(1)
				go func(job *model.DetectionJob) {
					defer wg.Done()
					if err := s.processJob(ctx, job); err != nil {
						mu.Lock()
						errs++
						mu.Unlock()
					} else {
						mu.Lock()
						notified++
						mu.Unlock()
					}
				}(&jobs[i])
			}
			wg.Wait()
		}

		if err != nil || len(jobs) == 0 {
			return notified, errs
		}
	}
}

// processJob runs one queued detection through notification, archival,
// persistence and roster advancement. Storage is attempted regardless of the
// dispatch outcome; advancement happens only when at least one channel
// delivered. The in-flight marker is cleared on every path so the next scan
// can retry after a total failure.
func (s *Scheduler) processJob(ctx context.Context, job *model.DetectionJob) error {
	student := &job.Student
	log := s.log.With().
		Str("reg_no", student.RegNo).
		Int("semester", job.ExpectedSemester).
		Logger()

	defer func() {
		if err := s.queue.ClearInFlight(ctx, student.RegNo); err != nil {
			log.Error().Err(err).Msg("Failed to clear in-flight marker")
		}
	}()

	msg := notify.BuildMessage(student, &job.Outcome, job.ExpectedSemester)

	delivery, dispatchErr := s.notifier.Dispatch(ctx, student, msg)
	if dispatchErr != nil {
		log.Error().Err(dispatchErr).Msg("Notification dispatch failed on all channels")
	}

	if s.archiver != nil {
		if key, err := s.archiver.ArchiveOutcome(ctx, student.RegNo, job.ExpectedSemester, &job.Outcome); err != nil {
			log.Warn().Err(err).Msg("Raw payload archive failed")
		} else {
			log.Debug().Str("key", key).Msg("Raw payload archived")
		}
	}

	// Storage is attempted even when every channel failed: visibility over
	// suppression.
	status := store.ChannelStatus{
		Telegram: delivery["telegram"],
		Email:    delivery["email"],
	}
	if err := s.store.UpsertSnapshot(ctx, student, &job.Outcome, job.ExpectedSemester, status); err != nil {
		log.Error().Err(err).Msg("Snapshot storage failed")
		// Advancement below is deliberately not blocked by a storage
		// failure; the student was already notified.
	}

	if dispatchErr != nil {
		// No channel delivered: leave the high-water-mark untouched so the
		// next cycle re-detects and retries.
		return dispatchErr
	}

	published := job.Outcome.PublishedSemesters()
	year, _, graduated := result.YearOf(job.Outcome.MaxSemester)
	if err := s.roster.AdvanceNotifiedSemesters(ctx, student.RegNo, published, year); err != nil {
		log.Error().Err(err).Msg("Failed to advance notified semesters")
		return err
	}

	log.Info().
		Ints("notified_semesters", published).
		Int("year", year).
		Bool("graduated", graduated).
		Msg("Student processed")

	return nil
}

func (s *Scheduler) Metrics() Metrics {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	return s.metrics
}
