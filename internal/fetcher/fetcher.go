// Package fetcher runs the scan phase: the roster is walked in fixed-size
// batches, each batch fans out one portal fetch per student with a per-item
// timeout, and confirmed new-semester detections are funneled into the
// processing queue.
package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Naveenkumar-R96/excel-result-1/internal/config"
	"github.com/Naveenkumar-R96/excel-result-1/internal/logger"
	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
)

// AcquisitionClient is the portal boundary. Implementations must classify
// every failure into the outcome itself rather than returning an error, so
// one student can never abort a batch.
type AcquisitionClient interface {
	Fetch(ctx context.Context, student *model.Student, expectedSem int) *model.Outcome
}

// Queue is the detection queue plus the in-flight de-duplication set.
type Queue interface {
	Enqueue(ctx context.Context, job model.DetectionJob) error
	IsInFlight(ctx context.Context, regNo string) (bool, error)
	MarkInFlight(ctx context.Context, regNo string) (bool, error)
	ClearInFlight(ctx context.Context, regNo string) error
}

// Report summarizes one scan over the full roster.
type Report struct {
	Checked      int
	Queued       int
	NotPublished int
	Skipped      int
	Errors       int
}

type Fetcher struct {
	cfg    *config.Config
	client AcquisitionClient
	queue  Queue
	log    zerolog.Logger

	mu sync.Mutex // guards the report during batch fan-out
}

func NewFetcher(cfg *config.Config, client AcquisitionClient, queue Queue) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		client: client,
		queue:  queue,
		log:    logger.Component("fetcher"),
	}
}

// Scan checks every student on the roster for a newly published semester.
// Batches run in roster order; within a batch every student is fetched
// concurrently and the batch settles as a whole before the next one starts.
func (f *Fetcher) Scan(ctx context.Context, roster []model.Student) Report {
	batchSize := f.cfg.Workers.Notifier.BatchSize
	var report Report

	for start := 0; start < len(roster); start += batchSize {
		if ctx.Err() != nil {
			break
		}

		end := start + batchSize
		if end > len(roster) {
			end = len(roster)
		}
		batch := roster[start:end]

		f.log.Debug().
			Int("batch_start", start).
			Int("batch_size", len(batch)).
			Msg("Scanning roster batch")

		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(student *model.Student) {
				defer wg.Done()
				f.checkStudent(ctx, student, &report)
			}(&batch[i])
		}
		wg.Wait()

		// Backpressure between batches so the portal is not saturated.
		if end < len(roster) {
			select {
			case <-ctx.Done():
				return report
			case <-time.After(f.cfg.Workers.Notifier.BatchDelay):
			}
		}
	}

	return report
}

func (f *Fetcher) checkStudent(ctx context.Context, student *model.Student, report *Report) {
	log := f.log.With().Str("reg_no", student.RegNo).Str("name", student.Name).Logger()

	f.count(report, func(r *Report) { r.Checked++ })

	if student.RegNo == "" || student.DOB == "" {
		log.Error().Msg("Invalid student data, skipping")
		f.count(report, func(r *Report) { r.Errors++ })
		return
	}

	inFlight, err := f.queue.IsInFlight(ctx, student.RegNo)
	if err != nil {
		log.Error().Err(err).Msg("In-flight check failed")
		f.count(report, func(r *Report) { r.Errors++ })
		return
	}
	if inFlight {
		log.Debug().Msg("Detection already queued, skipping")
		f.count(report, func(r *Report) { r.Skipped++ })
		return
	}

	expectedSem := student.ExpectedSemester()
	outcome := f.fetchWithTimeout(ctx, student, expectedSem)

	switch outcome.Status {
	case model.StatusNotPublished:
		log.Debug().Int("expected_sem", expectedSem).Msg("Semester not yet published")
		f.count(report, func(r *Report) { r.NotPublished++ })

	case model.StatusError:
		log.Error().Str("message", outcome.Message).Msg("Acquisition failed")
		f.count(report, func(r *Report) { r.Errors++ })

	case model.StatusSuccess:
		if !outcome.HasSemester(expectedSem) {
			log.Debug().Int("expected_sem", expectedSem).Msg("Expected semester not in result")
			f.count(report, func(r *Report) { r.NotPublished++ })
			return
		}

		added, err := f.queue.MarkInFlight(ctx, student.RegNo)
		if err != nil {
			log.Error().Err(err).Msg("Failed to mark student in flight")
			f.count(report, func(r *Report) { r.Errors++ })
			return
		}
		if !added {
			f.count(report, func(r *Report) { r.Skipped++ })
			return
		}

		job := model.DetectionJob{
			Student:          *student,
			Outcome:          *outcome,
			ExpectedSemester: expectedSem,
			DetectedAt:       time.Now().UTC(),
		}
		if err := f.queue.Enqueue(ctx, job); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue detection")
			if clearErr := f.queue.ClearInFlight(ctx, student.RegNo); clearErr != nil {
				log.Error().Err(clearErr).Msg("Failed to clear in-flight marker")
			}
			f.count(report, func(r *Report) { r.Errors++ })
			return
		}

		log.Info().Int("semester", expectedSem).Msg("New semester detected, queued for processing")
		f.count(report, func(r *Report) { r.Queued++ })
	}
}

// fetchWithTimeout races the acquisition against the per-item timeout. A
// fired timeout settles this student as an error outcome; the underlying
// call keeps its own cancellation via the derived context.
func (f *Fetcher) fetchWithTimeout(ctx context.Context, student *model.Student, expectedSem int) *model.Outcome {
	fetchCtx, cancel := context.WithTimeout(ctx, f.cfg.Portal.FetchTimeout)
	defer cancel()

	outcomeCh := make(chan *model.Outcome, 1)
	go func() {
		outcomeCh <- f.client.Fetch(fetchCtx, student, expectedSem)
	}()

	select {
	case outcome := <-outcomeCh:
		return outcome
	case <-fetchCtx.Done():
		return &model.Outcome{Status: model.StatusError, Message: "student fetch timeout"}
	}
}

func (f *Fetcher) count(report *Report, fn func(*Report)) {
	f.mu.Lock()
	fn(report)
	f.mu.Unlock()
}
