// Package portal talks to the external academic-records portal. Each fetch
// runs in its own authenticated session; nothing is shared between students.
package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/Naveenkumar-R96/excel-result-1/internal/config"
	"github.com/Naveenkumar-R96/excel-result-1/internal/logger"
	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
	"github.com/Naveenkumar-R96/excel-result-1/internal/result"
	"github.com/Naveenkumar-R96/excel-result-1/pkg/errors"
)

type Client struct {
	cfg *config.Config
	log zerolog.Logger
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg: cfg,
		log: logger.Get(),
	}
}

// Fetch logs into the portal as the given student, extracts the marks table
// and classifies the outcome. Transport and parse failures never escape as
// errors; they come back as a StatusError outcome so one student's failure
// stays isolated. The session (cookie jar, connections) is dropped on every
// exit path.
func (c *Client) Fetch(ctx context.Context, student *model.Student, expectedSem int) *model.Outcome {
	log := c.log.With().Str("reg_no", student.RegNo).Int("expected_sem", expectedSem).Logger()

	rows, err := c.fetchRows(ctx, student)
	if err != nil {
		log.Error().Err(err).Msg("Portal fetch failed")
		return &model.Outcome{Status: model.StatusError, Message: err.Error()}
	}

	maxAvailable := 0
	found := false
	for _, row := range rows {
		if sem, err := strconv.Atoi(row.Sem); err == nil {
			found = true
			if sem > maxAvailable {
				maxAvailable = sem
			}
		}
	}

	if !found {
		log.Warn().Msg("No valid semester data in portal response")
		return &model.Outcome{Status: model.StatusError, Message: errors.ErrNoSemesterData.Error()}
	}

	log.Debug().Int("max_available", maxAvailable).Msg("Portal rows extracted")

	if maxAvailable < expectedSem {
		return &model.Outcome{
			Status:       model.StatusNotPublished,
			MaxAvailable: maxAvailable,
			Expected:     expectedSem,
			Message:      fmt.Sprintf("semester %d not yet published", expectedSem),
		}
	}

	semesters := make(map[int][]model.Subject)
	for _, row := range rows {
		sem, err := strconv.Atoi(row.Sem)
		if err != nil || sem > maxAvailable {
			continue
		}
		semesters[sem] = append(semesters[sem], row.Subject)
	}

	semesterCGPA, overall := result.Aggregate(semesters, maxAvailable)

	log.Info().Int("max_semester", maxAvailable).Msg("Portal result acquired")

	return &model.Outcome{
		Status:       model.StatusSuccess,
		Semesters:    semesters,
		SemesterCGPA: semesterCGPA,
		OverallCGPA:  overall,
		MaxSemester:  maxAvailable,
	}
}

// fetchRows runs the actual portal session: fresh cookie jar, form login,
// then the result frame.
func (c *Client) fetchRows(ctx context.Context, student *model.Student) ([]rawRow, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	httpClient := &http.Client{
		Jar:     jar,
		Timeout: c.cfg.Portal.RequestTimeout,
	}
	defer httpClient.CloseIdleConnections()

	form := url.Values{}
	form.Set("txtLoginId", student.RegNo)
	form.Set("txtPassword", student.DOB)

	loginURL := c.cfg.Portal.BaseURL + c.cfg.Portal.LoginPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		// Transport failures are transient; the next scan retries them.
		return nil, errors.NewRetryableError(err, "portal login request")
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", errors.ErrPortalLoginFailed, resp.StatusCode)
	}

	// The result table may be embedded directly or behind a frame src.
	if frameSrc := findFrameSrc(string(body)); frameSrc != "" {
		frameURL := frameSrc
		if !strings.HasPrefix(frameSrc, "http") {
			frameURL = c.cfg.Portal.BaseURL + "/" + strings.TrimPrefix(frameSrc, "/")
		}

		freq, err := http.NewRequestWithContext(ctx, http.MethodGet, frameURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create frame request: %w", err)
		}

		fresp, err := httpClient.Do(freq)
		if err != nil {
			return nil, errors.NewRetryableError(err, "portal result frame")
		}
		body, err = io.ReadAll(fresp.Body)
		fresp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read frame response: %w", err)
		}
		if fresp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("portal frame returned status %d", fresp.StatusCode)
		}
	}

	return parseResultTable(string(body))
}

// findFrameSrc returns the src of the first iframe in the markup, or "".
func findFrameSrc(body string) string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return ""
	}

	var find func(n *html.Node) string
	find = func(n *html.Node) string {
		if n.Type == html.ElementNode && (n.Data == "iframe" || n.Data == "frame") {
			for _, attr := range n.Attr {
				if attr.Key == "src" {
					return attr.Val
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if src := find(c); src != "" {
				return src
			}
		}
		return ""
	}
	return find(doc)
}
