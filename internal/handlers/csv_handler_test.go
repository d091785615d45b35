package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hawsen-the-first/ynab-sync/internal/models"
	"github.com/hawsen-the-first/ynab-sync/internal/repository"
	"github.com/hawsen-the-first/ynab-sync/internal/services/dedup"
	"github.com/hawsen-the-first/ynab-sync/internal/services/ynab"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.ImportRecord{}, &models.MappingProfile{}))
	return db
}

// fakeYNAB returns a server that accepts any import batch and echoes one
// created id per submitted row.
func fakeYNAB(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Transactions []map[string]any `json:"transactions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		ids := make([]map[string]string, 0, len(payload.Transactions))
		for i := range payload.Transactions {
			ids = append(ids, map[string]string{"id": fmt.Sprintf("txn-%d", i)})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"transactions":         ids,
				"duplicate_import_ids": []string{},
			},
		})
	}))
}

func newCSVRouter(t *testing.T, db *gorm.DB, ynabURL string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dedupSvc := dedup.NewService(db)
	profileRepo := repository.NewMappingProfileRepository(db)
	csvHandler := NewCSVHandler(dedupSvc, ynab.NewClient(ynabURL, "test-token"), profileRepo)
	mappingsHandler := NewMappingsHandler(profileRepo)

	r := gin.New()
	r.GET("/api/csv/presets", csvHandler.ListPresets)
	r.POST("/api/csv/preview", csvHandler.Preview)
	r.POST("/api/csv/import", csvHandler.Import)
	r.GET("/api/mappings", mappingsHandler.List)
	r.POST("/api/mappings", mappingsHandler.Create)
	r.DELETE("/api/mappings/:id", mappingsHandler.Delete)
	return r
}

func uploadRequest(t *testing.T, target, csvContent string, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "export.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csvContent))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

const asbExport = "Date,Amount,Payee,Memo\n" +
	"15/03/2024,-42.50,COUNTDOWN,groceries\n" +
	"16/03/2024,-8.00,BP CONNECT,fuel\n"

func TestCSVImportRecordsLedger(t *testing.T) {
	db := openTestDB(t)
	server := fakeYNAB(t)
	defer server.Close()
	router := newCSVRouter(t, db, server.URL)

	req := uploadRequest(t, "/api/csv/import", asbExport, map[string]string{
		"preset":          "asb",
		"ynab_budget_id":  "budget-1",
		"ynab_account_id": "acct-1",
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Total    int `json:"total"`
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
		Recorded int `json:"recorded"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 2, resp.Imported)
	assert.Zero(t, resp.Skipped)
	assert.Equal(t, 2, resp.Recorded)

	var count int64
	require.NoError(t, db.Model(&models.ImportRecord{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestCSVImportTwiceSkipsDuplicates(t *testing.T) {
	db := openTestDB(t)
	server := fakeYNAB(t)
	defer server.Close()
	router := newCSVRouter(t, db, server.URL)

	fields := map[string]string{
		"preset":          "asb",
		"ynab_budget_id":  "budget-1",
		"ynab_account_id": "acct-1",
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/csv/import", asbExport, fields))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/csv/import", asbExport, fields))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Imported)
	assert.Equal(t, 2, resp.Skipped)
}

func TestCSVPreviewFlagsDuplicatesWithoutImporting(t *testing.T) {
	db := openTestDB(t)
	server := fakeYNAB(t)
	defer server.Close()
	router := newCSVRouter(t, db, server.URL)

	fields := map[string]string{
		"preset":          "asb",
		"ynab_budget_id":  "budget-1",
		"ynab_account_id": "acct-1",
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/csv/import", asbExport, fields))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/csv/preview", asbExport, map[string]string{"preset": "asb"}))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Total        int `json:"total"`
		Duplicates   int `json:"duplicates"`
		Transactions []struct {
			IsDuplicate bool `json:"is_duplicate"`
		} `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 2, resp.Duplicates)
	for _, tx := range resp.Transactions {
		assert.True(t, tx.IsDuplicate)
	}

	var count int64
	require.NoError(t, db.Model(&models.ImportRecord{}).Count(&count).Error)
	assert.EqualValues(t, 2, count, "preview must not write to the ledger")
}

func TestCSVImportRejectsUnknownPreset(t *testing.T) {
	db := openTestDB(t)
	router := newCSVRouter(t, db, "http://ynab.invalid")

	req := uploadRequest(t, "/api/csv/import", asbExport, map[string]string{
		"preset":          "nope",
		"ynab_budget_id":  "budget-1",
		"ynab_account_id": "acct-1",
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCSVImportRequiresDestination(t *testing.T) {
	db := openTestDB(t)
	router := newCSVRouter(t, db, "http://ynab.invalid")

	req := uploadRequest(t, "/api/csv/import", asbExport, map[string]string{"preset": "asb"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMappingProfileRoundTrip(t *testing.T) {
	db := openTestDB(t)
	server := fakeYNAB(t)
	defer server.Close()
	router := newCSVRouter(t, db, server.URL)

	payload := `{
		"name": "my-bank",
		"column_mappings": {"date": "Date", "amount": "Amount", "payee": "Payee", "memo": "Memo"},
		"date_format": "02/01/2006"
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/mappings", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Profile models.MappingProfile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// Import through the saved profile instead of a preset.
	req = uploadRequest(t, "/api/csv/import", asbExport, map[string]string{
		"profile_id":      created.Profile.ID.String(),
		"ynab_budget_id":  "budget-1",
		"ynab_account_id": "acct-1",
	})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/mappings/"+created.Profile.ID.String(), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.MappingProfile{}).Count(&count).Error)
	assert.Zero(t, count)
}
