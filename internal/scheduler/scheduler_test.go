package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Naveenkumar-R96/excel-result-1/internal/config"
	"github.com/Naveenkumar-R96/excel-result-1/internal/fetcher"
	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
	"github.com/Naveenkumar-R96/excel-result-1/internal/notify"
	"github.com/Naveenkumar-R96/excel-result-1/internal/store"
	"github.com/Naveenkumar-R96/excel-result-1/pkg/errors"
)

type fakeRoster struct {
	mu       sync.Mutex
	students []model.Student
	advanced map[string][]int
	years    map[string]int
	err      error
}

func newFakeRoster(students ...model.Student) *fakeRoster {
	return &fakeRoster{
		students: students,
		advanced: make(map[string][]int),
		years:    make(map[string]int),
	}
}

func (r *fakeRoster) ListStudents(ctx context.Context) ([]model.Student, error) {
	return r.students, nil
}

func (r *fakeRoster) AdvanceNotifiedSemesters(ctx context.Context, regNo string, semesters []int, year int) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advanced[regNo] = semesters
	r.years[regNo] = year
	return nil
}

type fakeScanner struct {
	report  fetcher.Report
	block   chan struct{} // when set, Scan blocks until closed
	scans   int
	scansMu sync.Mutex
}

func (s *fakeScanner) Scan(ctx context.Context, roster []model.Student) fetcher.Report {
	s.scansMu.Lock()
	s.scans++
	s.scansMu.Unlock()
	if s.block != nil {
		<-s.block
	}
	return s.report
}

type fakeQueue struct {
	mu         sync.Mutex
	jobs       []model.DetectionJob
	inFlight   map[string]bool
	cleared    []string
	dequeueErr error // returned once, alongside whatever was popped
}

func newFakeQueue(jobs ...model.DetectionJob) *fakeQueue {
	q := &fakeQueue{inFlight: make(map[string]bool)}
	for _, job := range jobs {
		q.jobs = append(q.jobs, job)
		q.inFlight[job.Student.RegNo] = true
	}
	return q
}

func (q *fakeQueue) DequeueBatch(ctx context.Context, limit int) ([]model.DetectionJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, nil
	}
	n := limit
	if n > len(q.jobs) {
		n = len(q.jobs)
	}
	batch := q.jobs[:n]
	q.jobs = q.jobs[n:]
	err := q.dequeueErr
	q.dequeueErr = nil
	return batch, err
}

func (q *fakeQueue) ClearInFlight(ctx context.Context, regNo string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, regNo)
	q.cleared = append(q.cleared, regNo)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	result notify.Result
	err    error
	sent   []string
}

func (n *fakeNotifier) Dispatch(ctx context.Context, student *model.Student, msg notify.Message) (notify.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, student.RegNo)
	return n.result, n.err
}

type fakeStore struct {
	mu      sync.Mutex
	upserts []storedUpsert
	err     error
}

type storedUpsert struct {
	regNo       string
	detectedSem int
	status      store.ChannelStatus
}

func (s *fakeStore) UpsertSnapshot(ctx context.Context, student *model.Student, outcome *model.Outcome, detectedSem int, status store.ChannelStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, storedUpsert{regNo: student.RegNo, detectedSem: detectedSem, status: status})
	return s.err
}

func schedulerConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Workers.Notifier.Interval = time.Minute
	cfg.Workers.Notifier.BatchSize = 5
	cfg.Workers.Notifier.BatchDelay = time.Millisecond
	cfg.Workers.Notifier.WatchdogThreshold = time.Minute
	return cfg
}

func detectionJob(regNo string, expected int, published ...int) model.DetectionJob {
	cgpa := 8.5
	semesters := make(map[int][]model.Subject)
	semCGPA := make(map[int]*float64)
	for _, sem := range published {
		semesters[sem] = []model.Subject{{Code: "CS", Credit: "3", Point: "8"}}
		semCGPA[sem] = &cgpa
	}
	max := 0
	for _, sem := range published {
		if sem > max {
			max = sem
		}
	}
	return model.DetectionJob{
		Student:          model.Student{RegNo: regNo, Name: "Student " + regNo, DOB: "x", NotifiedSemesters: published[:len(published)-1]},
		Outcome:          model.Outcome{Status: model.StatusSuccess, Semesters: semesters, SemesterCGPA: semCGPA, OverallCGPA: &cgpa, MaxSemester: max},
		ExpectedSemester: expected,
		DetectedAt:       time.Now(),
	}
}

func TestRunOnce_SingleFlight(t *testing.T) {
	roster := newFakeRoster(model.Student{RegNo: "A", Name: "A", DOB: "x"})
	scanner := &fakeScanner{block: make(chan struct{})}
	queue := newFakeQueue()
	sched := New(schedulerConfig(), roster, scanner, queue, &fakeNotifier{result: notify.Result{}}, &fakeStore{}, nil)

	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		sched.RunOnce(ctx)
		close(done)
	}()

	// Wait for the first run to be inside Scan, then tick again.
	require.Eventually(t, func() bool {
		scanner.scansMu.Lock()
		defer scanner.scansMu.Unlock()
		return scanner.scans == 1
	}, time.Second, time.Millisecond)

	sched.RunOnce(ctx) // must be a no-op

	metrics := sched.Metrics()
	assert.Equal(t, int64(0), metrics.RunCount)
	assert.Equal(t, int64(1), metrics.SkippedTicks)

	close(scanner.block)
	<-done

	metrics = sched.Metrics()
	assert.Equal(t, int64(1), metrics.RunCount)
	assert.Equal(t, 1, scanner.scans, "held-open run means the overlapping tick never scans")
}

func TestDrain_AdvancesToFullPublishedSet(t *testing.T) {
	// Student A was notified for [1,2]; semester 3 appears and the portal
	// returns all of 1..3.
	job := detectionJob("A", 3, 1, 2, 3)
	roster := newFakeRoster(job.Student)
	queue := newFakeQueue(job)
	notifier := &fakeNotifier{result: notify.Result{"telegram": true, "email": true}}
	snapshots := &fakeStore{}

	sched := New(schedulerConfig(), roster, &fakeScanner{}, queue, notifier, snapshots, nil)
	sched.RunOnce(context.Background())

	assert.Equal(t, []int{1, 2, 3}, roster.advanced["A"])
	assert.Equal(t, 2, roster.years["A"]) // next semester 4 -> year 2

	require.Len(t, snapshots.upserts, 1)
	assert.Equal(t, 3, snapshots.upserts[0].detectedSem)
	assert.True(t, snapshots.upserts[0].status.Telegram)

	assert.Equal(t, []string{"A"}, queue.cleared)
	assert.Equal(t, int64(1), sched.Metrics().TotalNotified)
}

func TestDrain_TotalDispatchFailureDoesNotAdvance(t *testing.T) {
	job := detectionJob("A", 1, 1)
	roster := newFakeRoster(job.Student)
	queue := newFakeQueue(job)
	notifier := &fakeNotifier{result: notify.Result{"telegram": false, "email": false}, err: errors.ErrAllChannelsFailed}
	snapshots := &fakeStore{}

	sched := New(schedulerConfig(), roster, &fakeScanner{}, queue, notifier, snapshots, nil)
	sched.RunOnce(context.Background())

	assert.Empty(t, roster.advanced, "high-water-mark must not move when no channel delivered")
	// Storage is still attempted: visibility over suppression.
	require.Len(t, snapshots.upserts, 1)
	assert.False(t, snapshots.upserts[0].status.Telegram)
	assert.False(t, snapshots.upserts[0].status.Email)
	// In-flight marker cleared so the next scan retries.
	assert.Equal(t, []string{"A"}, queue.cleared)
	assert.Equal(t, int64(0), sched.Metrics().TotalNotified)
}

func TestDrain_StorageFailureStillAdvances(t *testing.T) {
	job := detectionJob("A", 2, 1, 2)
	roster := newFakeRoster(job.Student)
	queue := newFakeQueue(job)
	notifier := &fakeNotifier{result: notify.Result{"email": true}}
	snapshots := &fakeStore{err: fmt.Errorf("mongo unavailable")}

	sched := New(schedulerConfig(), roster, &fakeScanner{}, queue, notifier, snapshots, nil)
	sched.RunOnce(context.Background())

	assert.Equal(t, []int{1, 2}, roster.advanced["A"])
	assert.Equal(t, int64(1), sched.Metrics().TotalNotified)
}

func TestDrain_DequeueErrorStillProcessesPoppedJobs(t *testing.T) {
	// A connection drop mid-batch hands back the jobs popped so far together
	// with the error. Those detections are already off the list; they must
	// still be notified and have their in-flight markers cleared.
	job := detectionJob("A", 1, 1)
	roster := newFakeRoster(job.Student)
	queue := newFakeQueue(job)
	queue.dequeueErr = fmt.Errorf("connection reset")
	notifier := &fakeNotifier{result: notify.Result{"telegram": true}}

	sched := New(schedulerConfig(), roster, &fakeScanner{}, queue, notifier, &fakeStore{}, nil)
	sched.RunOnce(context.Background())

	assert.Equal(t, []string{"A"}, notifier.sent, "popped job must be processed before the loop stops")
	assert.Equal(t, []string{"A"}, queue.cleared)
	assert.Equal(t, []int{1}, roster.advanced["A"])
	assert.Equal(t, int64(1), sched.Metrics().TotalNotified)
	assert.Equal(t, int64(1), sched.Metrics().TotalErrors)
}

func TestDrain_ProcessesQueueInChunks(t *testing.T) {
	jobs := []model.DetectionJob{
		detectionJob("A", 1, 1),
		detectionJob("B", 1, 1),
		detectionJob("C", 1, 1),
	}
	roster := newFakeRoster(jobs[0].Student, jobs[1].Student, jobs[2].Student)
	queue := newFakeQueue(jobs...)
	notifier := &fakeNotifier{result: notify.Result{"telegram": true}}

	cfg := schedulerConfig()
	cfg.Workers.Notifier.BatchSize = 2

	sched := New(cfg, roster, &fakeScanner{}, queue, notifier, &fakeStore{}, nil)
	sched.RunOnce(context.Background())

	assert.Len(t, roster.advanced, 3)
	assert.Len(t, notifier.sent, 3)
	assert.Empty(t, queue.jobs)
	assert.Equal(t, int64(3), sched.Metrics().TotalNotified)
}
