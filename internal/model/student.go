package model

import "time"

// Student is one roster entry. Records are created by the registration flow;
// this service only reads them and advances NotifiedSemesters after a
// successful notification cycle.
type Student struct {
	ID                int64      `json:"id"`
	RegNo             string     `json:"reg_no"`
	Name              string     `json:"name"`
	DOB               string     `json:"-"` // portal password, never serialized
	Email             string     `json:"email,omitempty"`
	TelegramChatID    string     `json:"telegram_chat_id,omitempty"`
	NotifiedSemesters []int      `json:"notified_semesters"`
	LastNotified      *time.Time `json:"last_notified,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// LastNotifiedSemester returns the high-water-mark of semesters already
// notified, or 0 when none.
func (s *Student) LastNotifiedSemester() int {
	max := 0
	for _, sem := range s.NotifiedSemesters {
		if sem > max {
			max = sem
		}
	}
	return max
}

// ExpectedSemester is the next semester to look for on the portal.
func (s *Student) ExpectedSemester() int {
	return s.LastNotifiedSemester() + 1
}
