package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpa-academy/schooladmin/internal/connection"
	"github.com/mpa-academy/schooladmin/internal/models"
	"github.com/mpa-academy/schooladmin/internal/rollover"
	"github.com/mpa-academy/schooladmin/internal/storage"
	"github.com/mpa-academy/schooladmin/internal/storage/sqlstore"
	"github.com/mpa-academy/schooladmin/internal/validation"
)

// fakeProvider is a StoreProvider whose readiness tests can toggle.
type fakeProvider struct {
	store storage.Store
	down  atomic.Bool
}

func (p *fakeProvider) Store() (storage.Store, bool) {
	if p.down.Load() {
		return nil, false
	}
	return p.store, true
}

func (p *fakeProvider) State() connection.State {
	if !p.down.Load() {
		return connection.StateReady
	}
	return connection.StateDegraded
}

var fixedNow = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// setupTestServer creates a test server backed by a temp SQLite database.
func setupTestServer(t *testing.T, opts ...Option) (*httptest.Server, *fakeProvider) {
	t.Helper()

	store, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	provider := &fakeProvider{store: store}

	mux := http.NewServeMux()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	New(provider, validation.New(), rollover.NewService(), opts...).Register(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		store.Close()
	})
	return server, provider
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), "body: %s", data)
	return v
}

func learnerBody(admissionNo, grade string) map[string]any {
	body := map[string]any{
		"fullName":    "Baraka Mwangi",
		"gender":      "Male",
		"dob":         "2014-09-21",
		"grade":       grade,
		"parentName":  "Jane Mwangi",
		"parentPhone": "0733000000",
		"parentEmail": "jane@example.com",
	}
	if admissionNo != "" {
		body["admissionNo"] = admissionNo
	}
	return body
}

func createLearner(t *testing.T, baseURL, admissionNo, grade string) models.Learner {
	t.Helper()
	resp, data := doJSON(t, http.MethodPost, baseURL+"/learners", learnerBody(admissionNo, grade))
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", data)
	return decode[models.Learner](t, data)
}

func TestLearnersCRUD(t *testing.T) {
	server, _ := setupTestServer(t)

	t.Run("List starts empty", func(t *testing.T) {
		resp, data := doJSON(t, http.MethodGet, server.URL+"/learners", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `[]`, string(data))
	})

	var created models.Learner
	t.Run("Create assigns ID and admission number", func(t *testing.T) {
		created = createLearner(t, server.URL, "", "Grade 3")
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "MPA-001", created.AdmissionNo)

		next := createLearner(t, server.URL, "", "PP1")
		assert.Equal(t, "MPA-002", next.AdmissionNo)
	})

	t.Run("Get by id", func(t *testing.T) {
		resp, data := doJSON(t, http.MethodGet, server.URL+"/api/learners?id="+created.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, created, decode[models.Learner](t, data))
	})

	t.Run("Update merges supplied fields", func(t *testing.T) {
		resp, data := doJSON(t, http.MethodPut, server.URL+"/learners?id="+created.ID, map[string]any{"grade": "Grade 4"})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", data)

		updated := decode[models.Learner](t, data)
		assert.Equal(t, models.Grade4, updated.Grade)
		assert.Equal(t, created.FullName, updated.FullName)
		assert.Equal(t, created.ID, updated.ID)
	})

	t.Run("Update cannot change the id", func(t *testing.T) {
		resp, data := doJSON(t, http.MethodPut, server.URL+"/learners?id="+created.ID, map[string]any{"_id": "other"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, created.ID, decode[models.Learner](t, data).ID)
	})

	t.Run("Delete returns 204", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodDelete, server.URL+"/learners?id="+created.ID, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = doJSON(t, http.MethodGet, server.URL+"/learners?id="+created.ID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestUnknownIDsReturn404(t *testing.T) {
	server, _ := setupTestServer(t)

	for _, path := range []string{"/learners", "/fees", "/books", "/classBooks"} {
		t.Run(path, func(t *testing.T) {
			resp, _ := doJSON(t, http.MethodGet, server.URL+path+"?id=missing", nil)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)

			resp, _ = doJSON(t, http.MethodPut, server.URL+path+"?id=missing", map[string]any{})
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)

			resp, data := doJSON(t, http.MethodDelete, server.URL+path+"?id=missing", nil)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.Contains(t, string(data), "not found")
		})
	}
}

func TestValidationFailures(t *testing.T) {
	server, _ := setupTestServer(t)

	t.Run("missing required field", func(t *testing.T) {
		body := learnerBody("MPA-010", "Grade 1")
		delete(body, "fullName")

		resp, data := doJSON(t, http.MethodPost, server.URL+"/learners", body)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		got := decode[errorBody](t, data)
		assert.Equal(t, "Failed to add learner", got.Error)
		assert.Contains(t, got.Details, "fullName is required")
	})

	t.Run("fee for unknown learner", func(t *testing.T) {
		resp, data := doJSON(t, http.MethodPost, server.URL+"/fees", map[string]any{
			"admissionNo": "MPA-404",
			"term":        "Term 1",
			"amountPaid":  1000,
			"balance":     0,
		})
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, decode[errorBody](t, data).Details, "MPA-404")
	})

	t.Run("fee without amounts", func(t *testing.T) {
		createLearner(t, server.URL, "MPA-030", "Grade 2")
		resp, data := doJSON(t, http.MethodPost, server.URL+"/fees", map[string]any{
			"admissionNo": "MPA-030",
			"term":        "Term 1",
		})
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		got := decode[errorBody](t, data)
		assert.Equal(t, "Failed to add fee", got.Error)
		assert.Contains(t, got.Details, "amountPaid is required")
		assert.Contains(t, got.Details, "balance is required")

		_, data = doJSON(t, http.MethodGet, server.URL+"/fees", nil)
		assert.JSONEq(t, `[]`, string(data))
	})

	t.Run("fee with zero amounts", func(t *testing.T) {
		resp, data := doJSON(t, http.MethodPost, server.URL+"/fees", map[string]any{
			"admissionNo": "MPA-030",
			"term":        "Term 1",
			"amountPaid":  0,
			"balance":     0,
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", data)
	})

	t.Run("class book without total", func(t *testing.T) {
		resp, data := doJSON(t, http.MethodPost, server.URL+"/classBooks", map[string]any{
			"bookNumber":  "CB-07",
			"subject":     "English",
			"description": "Class readers",
		})
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		got := decode[errorBody](t, data)
		assert.Equal(t, "Failed to add class book", got.Error)
		assert.Contains(t, got.Details, "totalBooks is required")
	})

	t.Run("class book with zero total", func(t *testing.T) {
		resp, data := doJSON(t, http.MethodPost, server.URL+"/classBooks", map[string]any{
			"bookNumber":  "CB-08",
			"subject":     "English",
			"description": "Class readers",
			"totalBooks":  0,
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", data)
		assert.Equal(t, 0, *decode[models.ClassBook](t, data).TotalBooks)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/learners", "{not json")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("duplicate admission number", func(t *testing.T) {
		createLearner(t, server.URL, "MPA-020", "Grade 1")
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/learners", learnerBody("MPA-020", "Grade 2"))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestFeesAndBooks(t *testing.T) {
	server, _ := setupTestServer(t)
	learner := createLearner(t, server.URL, "MPA-001", "Grade 5")

	resp, data := doJSON(t, http.MethodPost, server.URL+"/fees", map[string]any{
		"admissionNo": learner.AdmissionNo,
		"term":        "Term 2",
		"amountPaid":  4500.5,
		"balance":     1500,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", data)
	fee := decode[map[string]any](t, data)
	assert.Equal(t, 4500.5, fee["amountPaid"])

	resp, data = doJSON(t, http.MethodPost, server.URL+"/api/books", map[string]any{
		"admissionNo": learner.AdmissionNo,
		"subject":     "Science",
		"bookTitle":   "Spotlight Science 5",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", data)

	resp, data = doJSON(t, http.MethodGet, server.URL+"/books", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	books := decode[[]models.Book](t, data)
	require.Len(t, books, 1)
	assert.Equal(t, "Spotlight Science 5", books[0].BookTitle)
}

func TestStoreUnavailable(t *testing.T) {
	server, provider := setupTestServer(t)
	provider.down.Store(true)

	t.Run("lists degrade to empty", func(t *testing.T) {
		for _, path := range []string{"/learners", "/fees", "/books", "/classBooks", "/learnerArchives"} {
			resp, data := doJSON(t, http.MethodGet, server.URL+path, nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode, path)
			assert.JSONEq(t, `[]`, string(data), path)
		}
	})

	t.Run("singletons degrade to defaults", func(t *testing.T) {
		_, data := doJSON(t, http.MethodGet, server.URL+"/feeStructure", nil)
		assert.JSONEq(t, `{}`, string(data))

		_, data = doJSON(t, http.MethodGet, server.URL+"/termSettings", nil)
		assert.JSONEq(t, `{"currentTerm":"Term 1","currentYear":2026}`, string(data))
	})

	t.Run("mutations return 503", func(t *testing.T) {
		cases := []struct{ method, path string }{
			{http.MethodPost, "/learners"},
			{http.MethodPut, "/fees?id=x"},
			{http.MethodDelete, "/books?id=x"},
			{http.MethodPost, "/classBooks"},
			{http.MethodPost, "/feeStructure"},
			{http.MethodPost, "/termSettings"},
			{http.MethodPost, "/newAcademicYear"},
		}
		for _, tc := range cases {
			resp, _ := doJSON(t, tc.method, server.URL+tc.path, map[string]any{})
			assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "%s %s", tc.method, tc.path)
		}
	})

	t.Run("health reports disconnected", func(t *testing.T) {
		resp, data := doJSON(t, http.MethodGet, server.URL+"/health", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"status":"OK","message":"Server is running","storeConnected":"No","state":"degraded"}`, string(data))
	})
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := setupTestServer(t)

	cases := []struct{ method, path string }{
		{http.MethodPatch, "/learners"},
		{http.MethodDelete, "/feeStructure"},
		{http.MethodPut, "/termSettings"},
		{http.MethodPost, "/learnerArchives"},
		{http.MethodGet, "/newAcademicYear"},
		{http.MethodPost, "/health"},
	}
	for _, tc := range cases {
		resp, data := doJSON(t, tc.method, server.URL+tc.path, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, "%s %s", tc.method, tc.path)
		assert.JSONEq(t, `{"error":"Method not allowed"}`, string(data))
	}
}

func TestSingletons(t *testing.T) {
	server, _ := setupTestServer(t)

	t.Run("fee structure defaults to empty object then upserts", func(t *testing.T) {
		_, data := doJSON(t, http.MethodGet, server.URL+"/feeStructure", nil)
		assert.JSONEq(t, `{}`, string(data))

		resp, _ := doJSON(t, http.MethodPost, server.URL+"/feeStructure", map[string]any{"playgroup": 9000, "grade9": 18000})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp, _ = doJSON(t, http.MethodPost, server.URL+"/feeStructure", map[string]any{"pp1": 9500})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		_, data = doJSON(t, http.MethodGet, server.URL+"/feeStructure", nil)
		got := decode[map[string]float64](t, data)
		assert.Equal(t, 9000.0, got["playgroup"])
		assert.Equal(t, 9500.0, got["pp1"])
		assert.Equal(t, 18000.0, got["grade9"])
	})

	t.Run("term settings default to this year", func(t *testing.T) {
		_, data := doJSON(t, http.MethodGet, server.URL+"/termSettings", nil)
		assert.JSONEq(t, `{"currentTerm":"Term 1","currentYear":2026}`, string(data))
	})

	t.Run("term settings are validated", func(t *testing.T) {
		resp, data := doJSON(t, http.MethodPost, server.URL+"/termSettings", map[string]any{"currentTerm": "Term 9", "currentYear": 2026})
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, decode[errorBody](t, data).Details, "currentTerm")
	})

	t.Run("term settings save", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/termSettings", map[string]any{"currentTerm": "Term 2", "currentYear": 2025})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		_, data := doJSON(t, http.MethodGet, server.URL+"/api/termSettings", nil)
		assert.JSONEq(t, `{"currentTerm":"Term 2","currentYear":2025}`, string(data))
	})
}

func TestNewAcademicYear(t *testing.T) {
	server, _ := setupTestServer(t)

	t.Run("requires term settings", func(t *testing.T) {
		resp, data := doJSON(t, http.MethodPost, server.URL+"/newAcademicYear", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Term settings not found"}`, string(data))
	})

	leaver := createLearner(t, server.URL, "MPA-001", "Grade 9")
	stayer := createLearner(t, server.URL, "MPA-002", "Grade 3")
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/termSettings", map[string]any{"currentTerm": "Term 3", "currentYear": 2024})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("rolls the year over", func(t *testing.T) {
		resp, data := doJSON(t, http.MethodPost, server.URL+"/api/newAcademicYear", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", data)
		assert.Equal(t, rollover.Result{
			ArchivedYear: 2024,
			Archived:     2,
			Advanced:     1,
			Graduated:    1,
			NewYear:      2025,
			NewTerm:      "Term 1",
		}, decode[rollover.Result](t, data))

		_, data = doJSON(t, http.MethodGet, server.URL+"/learners", nil)
		learners := decode[[]models.Learner](t, data)
		require.Len(t, learners, 1)
		assert.Equal(t, stayer.ID, learners[0].ID)
		assert.Equal(t, models.Grade4, learners[0].Grade)

		_, data = doJSON(t, http.MethodGet, server.URL+"/termSettings", nil)
		assert.JSONEq(t, `{"currentTerm":"Term 1","currentYear":2025}`, string(data))
	})

	t.Run("archives are listed and served", func(t *testing.T) {
		_, data := doJSON(t, http.MethodGet, server.URL+"/learnerArchives", nil)
		assert.JSONEq(t, `[2024]`, string(data))

		resp, data := doJSON(t, http.MethodGet, server.URL+"/learnerArchives?year=2024", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		archived := decode[[]models.Learner](t, data)
		require.Len(t, archived, 2)
		assert.Equal(t, leaver, archived[0])
		assert.Equal(t, models.Grade3, archived[1].Grade)

		resp, _ = doJSON(t, http.MethodGet, server.URL+"/learnerArchives?year=1999", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp, _ = doJSON(t, http.MethodGet, server.URL+"/learnerArchives?year=abc", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("repeat for an archived year conflicts", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/termSettings", map[string]any{"currentYear": 2024})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = doJSON(t, http.MethodPost, server.URL+"/newAcademicYear", nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestNewAcademicYearIgnoresOpTimeout(t *testing.T) {
	server, provider := setupTestServer(t, WithOpTimeout(time.Nanosecond))
	ctx := context.Background()

	for i, grade := range []models.Grade{models.GradePP1, models.Grade6, models.Grade9} {
		learner := &models.Learner{
			AdmissionNo: fmt.Sprintf("MPA-%03d", i+1),
			FullName:    "Wanjiru Kamau",
			Gender:      "Female",
			DOB:         "2015-01-10",
			Grade:       grade,
			ParentName:  "Peter Kamau",
			ParentPhone: "0711000000",
			ParentEmail: "peter@example.com",
		}
		require.NoError(t, provider.store.Learners().Create(ctx, learner))
	}
	require.NoError(t, provider.store.SaveTermSettings(ctx, &models.TermSettings{CurrentTerm: models.Term3, CurrentYear: 2025}))

	// Other routes are still bounded.
	resp, _ := doJSON(t, http.MethodGet, server.URL+"/fees?id=missing", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, data := doJSON(t, http.MethodPost, server.URL+"/api/newAcademicYear", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", data)
	result := decode[rollover.Result](t, data)
	assert.Equal(t, 3, result.Archived)
	assert.Equal(t, 2, result.Advanced)
	assert.Equal(t, 1, result.Graduated)

	learners, err := provider.store.Learners().List(ctx)
	require.NoError(t, err)
	assert.Len(t, learners, 2)
}

func TestHealth(t *testing.T) {
	server, _ := setupTestServer(t)

	resp, data := doJSON(t, http.MethodGet, server.URL+"/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"OK","message":"Server is running","storeConnected":"Yes","state":"ready"}`, string(data))
}
