package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Naveenkumar-R96/excel-result-1/internal/config"
	"github.com/Naveenkumar-R96/excel-result-1/internal/model"
	"github.com/Naveenkumar-R96/excel-result-1/pkg/errors"
)

const resultPage = `<html><body>
<table class="tblBRDefault">
<tr><th>Sem</th><th>Code</th><th>Subject</th><th>Credit</th><th>Grade</th><th>Point</th><th>Result</th></tr>
<tr><td>1</td><td>CS101</td><td>Programming</td><td>3</td><td>A</td><td>8</td><td>PASS</td></tr>
<tr><td>1</td><td>CS102</td><td>Mathematics</td><td>4</td><td>A+</td><td>9</td><td>PASS</td></tr>
<tr><td>2</td><td>CS201</td><td>Data Structures</td><td>2</td><td>O</td><td>10</td><td>PASS</td></tr>
</table>
</body></html>`

func newTestClient(portalURL string) *Client {
	cfg := &config.Config{}
	cfg.Portal.BaseURL = portalURL
	cfg.Portal.LoginPath = "/students"
	return NewClient(cfg)
}

func testStudent() *model.Student {
	return &model.Student{RegNo: "REG001", Name: "Asha", DOB: "01-01-2004"}
}

func TestFetch_SuccessGroupsAndAggregates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "REG001", r.FormValue("txtLoginId"))
		assert.Equal(t, "01-01-2004", r.FormValue("txtPassword"))
		w.Write([]byte(resultPage))
	}))
	defer srv.Close()

	outcome := newTestClient(srv.URL).Fetch(context.Background(), testStudent(), 2)

	require.Equal(t, model.StatusSuccess, outcome.Status)
	assert.Equal(t, 2, outcome.MaxSemester)
	assert.Len(t, outcome.Semesters[1], 2)
	assert.Len(t, outcome.Semesters[2], 1)
	require.NotNil(t, outcome.SemesterCGPA[1])
	assert.Equal(t, 8.57, *outcome.SemesterCGPA[1])
	require.NotNil(t, outcome.OverallCGPA)
	assert.Equal(t, 9.29, *outcome.OverallCGPA)
	assert.True(t, outcome.HasSemester(2))
}

func TestFetch_FollowsFrameSrc(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/students", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><iframe src="/results/frame"></iframe></body></html>`))
	})
	mux.HandleFunc("/results/frame", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultPage))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	outcome := newTestClient(srv.URL).Fetch(context.Background(), testStudent(), 1)
	require.Equal(t, model.StatusSuccess, outcome.Status)
	assert.Equal(t, 2, outcome.MaxSemester)
}

func TestFetch_NotYetPublished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultPage))
	}))
	defer srv.Close()

	outcome := newTestClient(srv.URL).Fetch(context.Background(), testStudent(), 3)

	require.Equal(t, model.StatusNotPublished, outcome.Status)
	assert.Equal(t, 2, outcome.MaxAvailable)
	assert.Equal(t, 3, outcome.Expected)
	assert.False(t, outcome.HasSemester(3))
}

func TestFetch_NoParsableSemesterIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><table class="tblBRDefault">
<tr><th>Sem</th></tr>
<tr><td>N/A</td><td>CS101</td><td>Programming</td></tr>
</table></body></html>`))
	}))
	defer srv.Close()

	outcome := newTestClient(srv.URL).Fetch(context.Background(), testStudent(), 1)
	assert.Equal(t, model.StatusError, outcome.Status)
	assert.Equal(t, errors.ErrNoSemesterData.Error(), outcome.Message)
}

func TestFetch_TransportFailureIsRetryableErrorOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	outcome := newTestClient(srv.URL).Fetch(context.Background(), testStudent(), 1)
	assert.Equal(t, model.StatusError, outcome.Status)
	assert.Contains(t, outcome.Message, "retryable error: portal login request")
}

func TestFetch_ServerErrorStatusIsLoginFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	outcome := newTestClient(srv.URL).Fetch(context.Background(), testStudent(), 1)
	assert.Equal(t, model.StatusError, outcome.Status)
	assert.Contains(t, outcome.Message, errors.ErrPortalLoginFailed.Error())
}

func TestParseResultTable_SkipsHeaderAndPadsCells(t *testing.T) {
	rows, err := parseResultTable(resultPage)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "1", rows[0].Sem)
	assert.Equal(t, "CS101", rows[0].Subject.Code)
	assert.Equal(t, "PASS", rows[0].Subject.Result)

	short, err := parseResultTable(`<table class="tblBRDefault"><tr><th>h</th></tr><tr><td>1</td><td>X</td></tr></table>`)
	require.NoError(t, err)
	require.Len(t, short, 1)
	assert.Equal(t, "X", short[0].Subject.Code)
	assert.Equal(t, "", short[0].Subject.Result)
}

func TestParseResultTable_NoTable(t *testing.T) {
	rows, err := parseResultTable(`<html><body><p>login failed</p></body></html>`)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
