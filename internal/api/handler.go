package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Naveenkumar-R96/excel-result-1/internal/config"
	"github.com/Naveenkumar-R96/excel-result-1/internal/db"
	"github.com/Naveenkumar-R96/excel-result-1/internal/export"
	"github.com/Naveenkumar-R96/excel-result-1/internal/logger"
	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
	"github.com/Naveenkumar-R96/excel-result-1/internal/store"
	"github.com/Naveenkumar-R96/excel-result-1/pkg/errors"
)

// checkTimeout bounds one manual acquisition end to end.
const checkTimeout = 60 * time.Second

// AcquisitionClient is the portal boundary used by the manual check
// endpoint.
type AcquisitionClient interface {
	Fetch(ctx context.Context, student *model.Student, expectedSem int) *model.Outcome
}

type Handler struct {
	repo      db.Repository
	snapshots store.Store
	client    AcquisitionClient
	cfg       *config.Config
	log       zerolog.Logger
}

func NewHandler(repo db.Repository, snapshots store.Store, client AcquisitionClient, cfg *config.Config) *Handler {
	return &Handler{
		repo:      repo,
		snapshots: snapshots,
		client:    client,
		cfg:       cfg,
		log:       logger.Get(),
	}
}

// CheckStudent runs one synchronous acquisition for a single student. It
// stores a snapshot when the expected semester is present (with all channel
// flags false) but never advances the student's notified set; the next
// scheduled run still picks the detection up and notifies.
func (h *Handler) CheckStudent(c *gin.Context) {
	regNo := c.Param("reg_no")

	student, err := h.repo.GetStudentByRegNo(c.Request.Context(), regNo)
	if err == errors.ErrStudentNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("reg_no", regNo).Msg("Roster lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	expectedSem := student.ExpectedSemester()
	outcome := h.client.Fetch(ctx, student, expectedSem)

	hasExpected := outcome.HasSemester(expectedSem)
	stored := false
	if hasExpected {
		err := h.snapshots.UpsertSnapshot(ctx, student, outcome, expectedSem, store.ChannelStatus{})
		if err != nil {
			h.log.Error().Err(err).Str("reg_no", regNo).Msg("Failed to store manual check result")
		} else {
			stored = true
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"student":               student.Name,
		"reg_no":                student.RegNo,
		"last_notified_sem":     student.LastNotifiedSemester(),
		"expected_sem":          expectedSem,
		"notified_semesters":    student.NotifiedSemesters,
		"outcome":               outcome,
		"has_expected_semester": hasExpected,
		"stored":                stored,
		"timestamp":             time.Now().UTC(),
	})
}

func (h *Handler) ListResults(c *gin.Context) {
	page, err := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Page must be >= 1"})
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Limit must be 1-100"})
		return
	}

	results, err := h.snapshots.ListSnapshots(c.Request.Context(), page, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch results"})
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *Handler) GetResult(c *gin.Context) {
	regNo := c.Param("reg_no")

	snapshot, err := h.snapshots.GetSnapshot(c.Request.Context(), regNo)
	if err == errors.ErrSnapshotNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "No stored result for student"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("reg_no", regNo).Msg("Failed to fetch snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch result"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (h *Handler) GetHistory(c *gin.Context) {
	regNo := c.Param("reg_no")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 50 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Limit must be 1-50"})
		return
	}

	history, err := h.snapshots.History(c.Request.Context(), regNo, limit)
	if err == errors.ErrSnapshotNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "No stored result for student"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("reg_no", regNo).Msg("Failed to fetch history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reg_no":        regNo,
		"total_results": len(history),
		"results":       history,
	})
}

func (h *Handler) GetStatistics(c *gin.Context) {
	stats, err := h.snapshots.Statistics(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute statistics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ExportResults(c *gin.Context) {
	// Single page export; the roster is bounded to a few hundred students.
	page, err := h.snapshots.ListSnapshots(c.Request.Context(), 1, 1000)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load snapshots for export")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export results"})
		return
	}

	data, err := export.Snapshots(c.Request.Context(), page.Results)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to render export")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export results"})
		return
	}

	filename := fmt.Sprintf("results-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}
