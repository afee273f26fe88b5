package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
	"github.com/Naveenkumar-R96/excel-result-1/pkg/errors"
)

// Repository reads the student roster and advances per-student notification
// state. Students are registered elsewhere; this service never inserts or
// deletes them.
type Repository interface {
	ListStudents(ctx context.Context) ([]model.Student, error)
	GetStudentByRegNo(ctx context.Context, regNo string) (*model.Student, error)
	AdvanceNotifiedSemesters(ctx context.Context, regNo string, semesters []int, year int) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const studentColumns = `id, reg_no, name, dob, email, telegram_chat_id, notified_semesters, last_notified, created_at, updated_at`

func (r *repository) ListStudents(ctx context.Context) ([]model.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, *student)
	}

	return students, rows.Err()
}

func (r *repository) GetStudentByRegNo(ctx context.Context, regNo string) (*model.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE reg_no = ?`

	student, err := scanStudent(r.db.QueryRowContext(ctx, query, regNo))
	if err == sql.ErrNoRows {
		return nil, errors.ErrStudentNotFound
	}
	if err != nil {
		return nil, err
	}

	return student, nil
}

// AdvanceNotifiedSemesters replaces the notified set with the full published
// set in one statement. Called only from the single-flight drain phase, one
// student at a time.
func (r *repository) AdvanceNotifiedSemesters(ctx context.Context, regNo string, semesters []int, year int) error {
	encoded, err := json.Marshal(semesters)
	if err != nil {
		return fmt.Errorf("failed to encode semesters: %w", err)
	}

	query := `UPDATE students SET notified_semesters = ?, year = ?, last_notified = NOW(), updated_at = NOW() WHERE reg_no = ?`

	result, err := r.db.ExecContext(ctx, query, encoded, year, regNo)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.ErrStudentNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStudent(row rowScanner) (*model.Student, error) {
	var (
		student  model.Student
		email    sql.NullString
		chatID   sql.NullString
		notified sql.NullString
		lastSent sql.NullTime
	)

	err := row.Scan(
		&student.ID, &student.RegNo, &student.Name, &student.DOB,
		&email, &chatID, &notified, &lastSent,
		&student.CreatedAt, &student.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	student.Email = email.String
	student.TelegramChatID = chatID.String
	if lastSent.Valid {
		student.LastNotified = &lastSent.Time
	}
	if notified.Valid && notified.String != "" {
		if err := json.Unmarshal([]byte(notified.String), &student.NotifiedSemesters); err != nil {
			return nil, fmt.Errorf("failed to decode notified_semesters for %s: %w", student.RegNo, err)
		}
	}

	return &student, nil
}
