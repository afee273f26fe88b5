package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
)

// Message is one rendered notification: plain text for chat channels, HTML
// for email.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// BuildMessage renders the per-semester summary sent to the student when a
// new semester is detected. Portal-derived values are escaped in the HTML
// rendering; the plain-text rendering carries them as-is.
func BuildMessage(student *model.Student, outcome *model.Outcome, detectedSem int) Message {
	published := outcome.PublishedSemesters()

	var text strings.Builder
	fmt.Fprintf(&text, "RESULT PUBLISHED - NEW SEMESTER %d!\n", detectedSem)
	fmt.Fprintf(&text, "%s (%s)\n\n", student.Name, student.RegNo)

	var markup strings.Builder
	markup.WriteString(`<div style="font-family:Arial,sans-serif;max-width:600px">`)
	fmt.Fprintf(&markup, "<h2>Result Published - Semester %d</h2>", detectedSem)
	fmt.Fprintf(&markup, "<p><strong>%s</strong> (%s)</p>", html.EscapeString(student.Name), html.EscapeString(student.RegNo))

	for _, sem := range published {
		subjects := outcome.Semesters[sem]
		cgpa := formatCGPA(outcome.SemesterCGPA[sem])

		fmt.Fprintf(&text, "Semester %d\n", sem)
		fmt.Fprintf(&markup, "<h3>Semester %d</h3><table border=\"1\" cellpadding=\"4\" cellspacing=\"0\">", sem)
		markup.WriteString("<tr><th>Code</th><th>Subject</th><th>Grade</th><th>Result</th></tr>")

		for _, sub := range subjects {
			fmt.Fprintf(&text, "   %s | %s | %s (%s)\n", orNA(sub.Code), orNA(sub.Subject), orNA(sub.Grade), orNA(sub.Result))
			fmt.Fprintf(&markup, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
				escNA(sub.Code), escNA(sub.Subject), escNA(sub.Grade), escNA(sub.Result))
		}

		fmt.Fprintf(&text, "   CGPA: %s\n\n", cgpa)
		fmt.Fprintf(&markup, "</table><p>CGPA: <strong>%s</strong></p>", cgpa)
	}

	overall := formatCGPA(outcome.OverallCGPA)
	fmt.Fprintf(&text, "Overall CGPA: %s", overall)
	fmt.Fprintf(&markup, "<p>Overall CGPA: <strong>%s</strong></p></div>", overall)

	return Message{
		Subject: "Your Result is Published",
		Text:    text.String(),
		HTML:    markup.String(),
	}
}

func formatCGPA(cgpa *float64) string {
	if cgpa == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *cgpa)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func escNA(s string) string {
	return html.EscapeString(orNA(s))
}
