package model

import (
	"sort"
	"time"
)

// Subject is one graded course row as extracted from the portal result table.
// Credit and Point are kept as raw strings; the portal publishes non-numeric
// placeholders for withheld or ungraded entries.
type Subject struct {
	Code    string `json:"code" bson:"code"`
	Subject string `json:"subject" bson:"subject"`
	Credit  string `json:"credit" bson:"credit"`
	Grade   string `json:"grade" bson:"grade"`
	Point   string `json:"point" bson:"point"`
	Result  string `json:"result" bson:"result"`
}

type Semester struct {
	Number   int       `json:"semester_number" bson:"semesterNumber"`
	Subjects []Subject `json:"subjects" bson:"subjects"`
	CGPA     *float64  `json:"cgpa" bson:"cgpa"`
}

// NotificationRecord is one append-only history entry. Entries are immutable
// once written; the store only ever pushes new ones.
type NotificationRecord struct {
	SemesterDetected int       `json:"semester_detected" bson:"semesterDetected"`
	Timestamp        time.Time `json:"timestamp" bson:"timestamp"`
	Telegram         bool      `json:"telegram" bson:"telegram"`
	Email            bool      `json:"email" bson:"email"`
	CGPAAtTime       *float64  `json:"cgpa_at_time" bson:"cgpaAtTime"`
}

// ResultSnapshot is the single living document per student. Semesters and the
// derived fields are replaced wholesale on every update; NotificationHistory
// only grows.
type ResultSnapshot struct {
	RegNo                string               `json:"reg_no" bson:"studentRegNo"`
	Name                 string               `json:"name" bson:"studentName"`
	Email                string               `json:"email,omitempty" bson:"studentEmail,omitempty"`
	Semesters            []Semester           `json:"semesters" bson:"semesters"`
	OverallCGPA          *float64             `json:"overall_cgpa" bson:"overallCgpa"`
	CurrentMaxSemester   int                  `json:"current_max_semester" bson:"currentMaxSemester"`
	LastNotifiedSemester int                  `json:"last_notified_semester" bson:"lastNotifiedSemester"`
	NotificationHistory  []NotificationRecord `json:"notification_history" bson:"notificationHistory"`
	LastUpdated          time.Time            `json:"last_updated" bson:"lastUpdated"`
	CreatedAt            time.Time            `json:"created_at" bson:"createdAt"`
}

type OutcomeStatus string

const (
	StatusSuccess      OutcomeStatus = "success"
	StatusNotPublished OutcomeStatus = "not_published"
	StatusError        OutcomeStatus = "error"
)

// Outcome is the classified result of one acquisition attempt. It is produced
// fresh on every call and never persisted directly.
type Outcome struct {
	Status       OutcomeStatus     `json:"status"`
	Semesters    map[int][]Subject `json:"all_semesters,omitempty"`
	SemesterCGPA map[int]*float64  `json:"semester_wise_cgpa,omitempty"`
	OverallCGPA  *float64          `json:"overall_cgpa,omitempty"`
	MaxSemester  int               `json:"max_semester,omitempty"`
	MaxAvailable int               `json:"max_available_semester,omitempty"`
	Expected     int               `json:"expected_semester,omitempty"`
	Message      string            `json:"message,omitempty"`
}

// PublishedSemesters returns the semester numbers present in the outcome,
// ascending.
func (o *Outcome) PublishedSemesters() []int {
	sems := make([]int, 0, len(o.Semesters))
	for sem := range o.Semesters {
		sems = append(sems, sem)
	}
	sort.Ints(sems)
	return sems
}

// HasSemester reports whether the outcome carries subject rows for sem.
func (o *Outcome) HasSemester(sem int) bool {
	if o.Status != StatusSuccess {
		return false
	}
	_, ok := o.Semesters[sem]
	return ok
}

// DetectionJob is the queue payload linking a confirmed new-semester detection
// to the drain phase.
type DetectionJob struct {
	Student          Student   `json:"student"`
	Outcome          Outcome   `json:"outcome"`
	ExpectedSemester int       `json:"expected_semester"`
	DetectedAt       time.Time `json:"detected_at"`
}
