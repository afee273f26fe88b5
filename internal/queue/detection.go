package queue

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/Naveenkumar-R96/excel-result-1/internal/config"
	"github.com/Naveenkumar-R96/excel-result-1/internal/logger"
	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
)

// DetectionQueue is the FIFO processing queue between "detected" and
// "notified", plus the in-flight set that keeps a student from being queued
// twice for the same detection. Both structures live in Redis so a worker
// restart does not lose pending detections.
type DetectionQueue struct {
	client *redis.Client
	cfg    *config.Config
	log    zerolog.Logger
}

func NewDetectionQueue(redisClient *RedisClient, cfg *config.Config) *DetectionQueue {
	return &DetectionQueue{
		client: redisClient.Client(),
		cfg:    cfg,
		log:    logger.Get(),
	}
}

func (q *DetectionQueue) Enqueue(ctx context.Context, job model.DetectionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	return q.client.LPush(ctx, q.cfg.Redis.DetectionQueue, data).Err()
}

// DequeueBatch pops up to limit jobs in FIFO order. Returns an empty slice
// when the queue is drained. On a transport error the jobs popped so far are
// returned alongside the error; the caller must still process them, since
// they are already gone from the list.
func (q *DetectionQueue) DequeueBatch(ctx context.Context, limit int) ([]model.DetectionJob, error) {
	jobs := make([]model.DetectionJob, 0, limit)
	for len(jobs) < limit {
		data, err := q.client.RPop(ctx, q.cfg.Redis.DetectionQueue).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return jobs, err
		}

		var job model.DetectionJob
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			// The payload is already popped; dropping it must also release
			// the student's in-flight marker or they are never scanned
			// again.
			q.log.Error().Err(err).Msg("Dropping undecodable detection payload")
			if regNo := peekRegNo(data); regNo != "" {
				if clearErr := q.ClearInFlight(ctx, regNo); clearErr != nil {
					q.log.Error().Err(clearErr).Str("reg_no", regNo).Msg("Failed to clear in-flight marker")
				}
			}
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// peekRegNo salvages the registration number from a payload that failed to
// decode as a full DetectionJob.
func peekRegNo(data string) string {
	var partial struct {
		Student struct {
			RegNo string `json:"reg_no"`
		} `json:"student"`
	}
	if err := json.Unmarshal([]byte(data), &partial); err != nil {
		return ""
	}
	return partial.Student.RegNo
}

func (q *DetectionQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.cfg.Redis.DetectionQueue).Result()
}

// MarkInFlight records that a student has a queued detection. Returns false
// when the student was already marked.
func (q *DetectionQueue) MarkInFlight(ctx context.Context, regNo string) (bool, error) {
	added, err := q.client.SAdd(ctx, q.cfg.Redis.InFlightSet, regNo).Result()
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

func (q *DetectionQueue) ClearInFlight(ctx context.Context, regNo string) error {
	return q.client.SRem(ctx, q.cfg.Redis.InFlightSet, regNo).Err()
}

func (q *DetectionQueue) IsInFlight(ctx context.Context, regNo string) (bool, error) {
	return q.client.SIsMember(ctx, q.cfg.Redis.InFlightSet, regNo).Result()
}
