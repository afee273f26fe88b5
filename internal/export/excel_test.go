package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
)

func TestSnapshots(t *testing.T) {
	cgpa := 8.57
	snapshots := []model.ResultSnapshot{
		{
			RegNo:                "REG001",
			Name:                 "Asha",
			Email:                "asha@example.com",
			CurrentMaxSemester:   3,
			LastNotifiedSemester: 3,
			OverallCGPA:          &cgpa,
			NotificationHistory:  []model.NotificationRecord{{SemesterDetected: 3}},
			LastUpdated:          time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		},
		{
			RegNo: "REG002",
			Name:  "Ravi",
		},
	}

	data, err := Snapshots(context.Background(), snapshots)
	require.NoError(t, err)

	file, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer file.Close()

	rows, err := file.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Reg No", rows[0][0])
	assert.Equal(t, "REG001", rows[1][0])
	assert.Equal(t, "8.57", rows[1][5])
	assert.Equal(t, "REG002", rows[2][0])
	assert.Equal(t, "N/A", rows[2][5])
}
