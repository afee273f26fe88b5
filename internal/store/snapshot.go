// Package store persists one ResultSnapshot document per student. Updates
// replace the snapshot fields wholesale and append to the notification
// history in a single upsert, so the document can never drift between the
// two halves.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Naveenkumar-R96/excel-result-1/internal/config"
	"github.com/Naveenkumar-R96/excel-result-1/internal/logger"
	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
	"github.com/Naveenkumar-R96/excel-result-1/pkg/errors"
)

// ChannelStatus records which channels delivered for one detection.
type ChannelStatus struct {
	Telegram bool
	Email    bool
}

type Statistics struct {
	TotalNotifications int64     `json:"total_notifications"`
	TelegramSent       int64     `json:"telegram_sent"`
	EmailSent          int64     `json:"email_sent"`
	UniqueStudents     int       `json:"unique_students"`
	RecentActivity     int64     `json:"recent_activity"`
	LastUpdated        time.Time `json:"last_updated"`
}

type SnapshotPage struct {
	Results     []model.ResultSnapshot `json:"results"`
	Total       int64                  `json:"total_results"`
	TotalPages  int64                  `json:"total_pages"`
	CurrentPage int64                  `json:"current_page"`
	HasNext     bool                   `json:"has_next"`
	HasPrev     bool                   `json:"has_prev"`
}

type Store interface {
	UpsertSnapshot(ctx context.Context, student *model.Student, outcome *model.Outcome, detectedSem int, status ChannelStatus) error
	GetSnapshot(ctx context.Context, regNo string) (*model.ResultSnapshot, error)
	ListSnapshots(ctx context.Context, page, limit int64) (*SnapshotPage, error)
	History(ctx context.Context, regNo string, limit int) ([]model.NotificationRecord, error)
	Statistics(ctx context.Context) (*Statistics, error)
}

type mongoStore struct {
	coll *mongo.Collection
	log  zerolog.Logger
}

func NewStore(client *mongo.Client, cfg *config.Config) Store {
	return &mongoStore{
		coll: client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection),
		log:  logger.Get(),
	}
}

func (s *mongoStore) UpsertSnapshot(ctx context.Context, student *model.Student, outcome *model.Outcome, detectedSem int, status ChannelStatus) error {
	update := buildUpsert(student, outcome, detectedSem, status, time.Now().UTC())

	_, err := s.coll.UpdateOne(
		ctx,
		bson.M{"studentRegNo": student.RegNo},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return err
	}

	s.log.Info().
		Str("reg_no", student.RegNo).
		Int("semester_detected", detectedSem).
		Msg("Result snapshot stored")

	return nil
}

// buildUpsert assembles the single-document update: snapshot fields are $set
// (replaced wholesale), the notification record is $push (append-only), and
// createdAt is written only on insert.
func buildUpsert(student *model.Student, outcome *model.Outcome, detectedSem int, status ChannelStatus, now time.Time) bson.M {
	record := model.NotificationRecord{
		SemesterDetected: detectedSem,
		Timestamp:        now,
		Telegram:         status.Telegram,
		Email:            status.Email,
		CGPAAtTime:       outcome.OverallCGPA,
	}

	return bson.M{
		"$set": bson.M{
			"studentName":          student.Name,
			"studentEmail":         student.Email,
			"semesters":            snapshotSemesters(outcome),
			"overallCgpa":          outcome.OverallCGPA,
			"currentMaxSemester":   outcome.MaxSemester,
			"lastNotifiedSemester": detectedSem,
			"lastUpdated":          now,
		},
		"$push":        bson.M{"notificationHistory": record},
		"$setOnInsert": bson.M{"createdAt": now},
	}
}

func snapshotSemesters(outcome *model.Outcome) []model.Semester {
	semesters := make([]model.Semester, 0, len(outcome.Semesters))
	for num, subjects := range outcome.Semesters {
		semesters = append(semesters, model.Semester{
			Number:   num,
			Subjects: subjects,
			CGPA:     outcome.SemesterCGPA[num],
		})
	}
	sort.Slice(semesters, func(i, j int) bool { return semesters[i].Number < semesters[j].Number })
	return semesters
}

func (s *mongoStore) GetSnapshot(ctx context.Context, regNo string) (*model.ResultSnapshot, error) {
	var snapshot model.ResultSnapshot
	err := s.coll.FindOne(ctx, bson.M{"studentRegNo": regNo}).Decode(&snapshot)
	if err == mongo.ErrNoDocuments {
		return nil, errors.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *mongoStore) ListSnapshots(ctx context.Context, page, limit int64) (*SnapshotPage, error) {
	total, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "lastUpdated", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	results := make([]model.ResultSnapshot, 0, limit)
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	totalPages := (total + limit - 1) / limit
	return &SnapshotPage{
		Results:     results,
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: page,
		HasNext:     page*limit < total,
		HasPrev:     page > 1,
	}, nil
}

func (s *mongoStore) History(ctx context.Context, regNo string, limit int) ([]model.NotificationRecord, error) {
	snapshot, err := s.GetSnapshot(ctx, regNo)
	if err != nil {
		return nil, err
	}

	history := snapshot.NotificationHistory
	// newest first
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

func (s *mongoStore) Statistics(ctx context.Context) (*Statistics, error) {
	total, err := s.coll.Aggregate(ctx, mongo.Pipeline{
		bson.D{{Key: "$project", Value: bson.M{
			"historyCount": bson.M{"$size": bson.M{"$ifNull": bson.A{"$notificationHistory", bson.A{}}}},
			"telegramSent": bson.M{"$size": bson.M{"$filter": bson.M{
				"input": bson.M{"$ifNull": bson.A{"$notificationHistory", bson.A{}}},
				"as":    "n",
				"cond":  "$$n.telegram",
			}}},
			"emailSent": bson.M{"$size": bson.M{"$filter": bson.M{
				"input": bson.M{"$ifNull": bson.A{"$notificationHistory", bson.A{}}},
				"as":    "n",
				"cond":  "$$n.email",
			}}},
		}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":          nil,
			"total":        bson.M{"$sum": "$historyCount"},
			"telegramSent": bson.M{"$sum": "$telegramSent"},
			"emailSent":    bson.M{"$sum": "$emailSent"},
			"students":     bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return nil, err
	}
	defer total.Close(ctx)

	stats := &Statistics{LastUpdated: time.Now().UTC()}
	if total.Next(ctx) {
		var row struct {
			Total        int64 `bson:"total"`
			TelegramSent int64 `bson:"telegramSent"`
			EmailSent    int64 `bson:"emailSent"`
			Students     int   `bson:"students"`
		}
		if err := total.Decode(&row); err != nil {
			return nil, err
		}
		stats.TotalNotifications = row.Total
		stats.TelegramSent = row.TelegramSent
		stats.EmailSent = row.EmailSent
		stats.UniqueStudents = row.Students
	}

	sevenDaysAgo := time.Now().Add(-7 * 24 * time.Hour)
	recent, err := s.coll.CountDocuments(ctx, bson.M{"lastUpdated": bson.M{"$gte": sevenDaysAgo}})
	if err != nil {
		return nil, err
	}
	stats.RecentActivity = recent

	return stats, nil
}
