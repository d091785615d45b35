package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hawsen-the-first/ynab-sync/internal/fingerprint"
	"github.com/hawsen-the-first/ynab-sync/internal/models"
	"github.com/hawsen-the-first/ynab-sync/internal/repository"
	"github.com/hawsen-the-first/ynab-sync/internal/services/csvimport"
	"github.com/hawsen-the-first/ynab-sync/internal/services/dedup"
	"github.com/hawsen-the-first/ynab-sync/internal/services/ynab"
)

type CSVHandler struct {
	dedup    *dedup.Service
	ynab     *ynab.Client
	profiles *repository.MappingProfileRepository
}

func NewCSVHandler(dedupSvc *dedup.Service, ynabClient *ynab.Client, profiles *repository.MappingProfileRepository) *CSVHandler {
	return &CSVHandler{dedup: dedupSvc, ynab: ynabClient, profiles: profiles}
}

// ListPresets returns the built-in bank CSV layouts.
func (h *CSVHandler) ListPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presets": csvimport.Presets})
}

// resolveMapping picks the column mapping for an upload: a saved profile by
// profile_id, a built-in preset by name, or explicit column fields on the
// form, in that precedence order.
func (h *CSVHandler) resolveMapping(c *gin.Context) (csvimport.Mapping, error) {
	if profileID := c.PostForm("profile_id"); profileID != "" {
		id, err := uuid.Parse(profileID)
		if err != nil {
			return csvimport.Mapping{}, fmt.Errorf("invalid profile_id")
		}
		profile, err := h.profiles.GetByID(id)
		if err != nil {
			return csvimport.Mapping{}, err
		}
		return mappingFromProfile(profile)
	}

	if preset := c.PostForm("preset"); preset != "" {
		p, ok := csvimport.Presets[preset]
		if !ok {
			return csvimport.Mapping{}, fmt.Errorf("unknown preset %q", preset)
		}
		return p.Mapping, nil
	}

	mapping := csvimport.Mapping{
		DateColumn:   c.PostForm("date_column"),
		AmountColumn: c.PostForm("amount_column"),
		PayeeColumn:  c.PostForm("payee_column"),
		MemoColumn:   c.PostForm("memo_column"),
		DateFormat:   c.PostForm("date_format"),
	}
	mapping.AmountInverted, _ = strconv.ParseBool(c.PostForm("amount_inverted"))
	mapping.SkipRows, _ = strconv.Atoi(c.PostForm("skip_rows"))
	if mapping.DateColumn == "" || mapping.AmountColumn == "" {
		return csvimport.Mapping{}, fmt.Errorf("a preset, profile_id, or date_column and amount_column are required")
	}
	return mapping, nil
}

func mappingFromProfile(profile *models.MappingProfile) (csvimport.Mapping, error) {
	var columns struct {
		Date   string `json:"date"`
		Amount string `json:"amount"`
		Payee  string `json:"payee"`
		Memo   string `json:"memo"`
	}
	if err := json.Unmarshal(profile.ColumnMappings, &columns); err != nil {
		return csvimport.Mapping{}, fmt.Errorf("profile %s has invalid column mappings", profile.Name)
	}
	return csvimport.Mapping{
		DateColumn:     columns.Date,
		AmountColumn:   columns.Amount,
		PayeeColumn:    columns.Payee,
		MemoColumn:     columns.Memo,
		DateFormat:     profile.DateFormat,
		AmountInverted: profile.AmountInverted,
		SkipRows:       profile.SkipRows,
	}, nil
}

func (h *CSVHandler) parseUpload(c *gin.Context) ([]models.Candidate, int, error) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		return nil, 0, fmt.Errorf("file required")
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	mapping, err := h.resolveMapping(c)
	if err != nil {
		return nil, 0, err
	}
	return csvimport.Parse(file, mapping, c.PostForm("source_account"))
}

// Preview parses an upload and flags already-imported rows without touching
// YNAB or the ledger.
func (h *CSVHandler) Preview(c *gin.Context) {
	candidates, parseSkipped, err := h.parseUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.dedup.ExistingFingerprints()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	previews := make([]transactionPreview, 0, len(candidates))
	duplicates := 0
	for _, tx := range candidates {
		_, isDup := existing[fingerprint.Candidate(tx)]
		if isDup {
			duplicates++
		}
		previews = append(previews, transactionPreview{
			Date:        tx.OccurredAt.Format("2006-01-02"),
			Amount:      tx.Amount,
			Payee:       tx.Payee,
			Memo:        tx.Memo,
			IsDuplicate: isDup,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions":  previews,
		"total":         len(previews),
		"duplicates":    duplicates,
		"unparsed_rows": parseSkipped,
	})
}

// Import parses an upload, filters already-imported rows, sends the rest to
// YNAB and records them in the ledger.
func (h *CSVHandler) Import(c *gin.Context) {
	budgetID := c.PostForm("ynab_budget_id")
	accountID := c.PostForm("ynab_account_id")
	if budgetID == "" || accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ynab_budget_id and ynab_account_id are required"})
		return
	}

	candidates, parseSkipped, err := h.parseUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	toImport, duplicates, err := h.dedup.MarkDuplicates(candidates)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result, err := h.ynab.ImportTransactions(c.Request.Context(), budgetID, accountID, toImport)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("YNAB import failed: %v", err)})
		return
	}

	recorded, err := h.dedup.RecordBatch(toImport, budgetID, accountID, result.TransactionIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":           len(candidates),
		"imported":        len(result.TransactionIDs),
		"skipped":         len(duplicates),
		"recorded":        recorded,
		"ynab_duplicates": len(result.DuplicateImportIDs),
		"unparsed_rows":   parseSkipped,
	})
}

// MappingsHandler is CRUD over saved CSV mapping profiles.
type MappingsHandler struct {
	profiles *repository.MappingProfileRepository
}

func NewMappingsHandler(profiles *repository.MappingProfileRepository) *MappingsHandler {
	return &MappingsHandler{profiles: profiles}
}

func (h *MappingsHandler) List(c *gin.Context) {
	profiles, err := h.profiles.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

func (h *MappingsHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile ID"})
		return
	}
	profile, err := h.profiles.GetByID(id)
	if errors.Is(err, repository.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (h *MappingsHandler) Create(c *gin.Context) {
	var profile models.MappingProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if profile.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if _, err := mappingFromProfile(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile.ID = uuid.Nil
	if err := h.profiles.Save(&profile); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"profile": profile})
}

func (h *MappingsHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile ID"})
		return
	}
	existing, err := h.profiles.GetByID(id)
	if errors.Is(err, repository.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var profile models.MappingProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	profile.ID = existing.ID
	profile.CreatedAt = existing.CreatedAt
	if err := h.profiles.Save(&profile); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (h *MappingsHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile ID"})
		return
	}
	if err := h.profiles.Delete(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile deleted"})
}
