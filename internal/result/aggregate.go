// Package result computes per-semester and overall performance metrics from
// raw portal subject rows. Everything here is pure: no I/O, deterministic
// output for identical input.
package result

import (
	"math"
	"strconv"

	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
)

// SemesterCGPA computes the credit-weighted grade-point average for one
// semester: sum(credit*point)/sum(credit) over rows where both values parse.
// Returns nil when no row contributes credits, so "no data" is never reported
// as a zero result.
func SemesterCGPA(subjects []model.Subject) *float64 {
	var points, credits float64
	for _, sub := range subjects {
		credit, err := strconv.ParseFloat(sub.Credit, 64)
		if err != nil {
			continue
		}
		point, err := strconv.ParseFloat(sub.Point, 64)
		if err != nil {
			continue
		}
		points += credit * point
		credits += credit
	}

	if credits == 0 {
		return nil
	}

	cgpa := round2(points / credits)
	return &cgpa
}

// OverallCGPA averages the per-semester CGPAs over maxSem. The divisor is
// maxSem, not the number of semesters with data, and the average is of
// averages rather than credit-weighted; stored snapshots and outgoing
// messages both carry this exact figure.
func OverallCGPA(semesterCGPA map[int]*float64, maxSem int) *float64 {
	if maxSem == 0 {
		return nil
	}

	var sum float64
	for _, cgpa := range semesterCGPA {
		if cgpa != nil {
			sum += *cgpa
		}
	}

	overall := round2(sum / float64(maxSem))
	return &overall
}

// Aggregate groups nothing itself; it derives both CGPA views from already
// grouped rows.
func Aggregate(semesters map[int][]model.Subject, maxSem int) (map[int]*float64, *float64) {
	semesterCGPA := make(map[int]*float64, len(semesters))
	for sem, subjects := range semesters {
		semesterCGPA[sem] = SemesterCGPA(subjects)
	}
	return semesterCGPA, OverallCGPA(semesterCGPA, maxSem)
}

// YearOf derives the student's current academic year from the max published
// semester. After results publish the student moves to the next semester,
// capped at 8; year is capped at 4. Graduated once semester 8 is published.
func YearOf(maxSem int) (year int, nextSemester int, graduated bool) {
	if maxSem < 0 {
		maxSem = 0
	}

	next := maxSem + 1
	if next > 8 {
		next = 8
	}

	year = (next + 1) / 2
	if year > 4 {
		year = 4
	}

	if maxSem >= 8 {
		return year, 0, true
	}
	return year, next, false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
