package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"servicehub/internal/database"
	"servicehub/internal/domain"
	"servicehub/internal/repository"
)

func setupRouter(t *testing.T) (*gin.Engine, *repository.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:catalog_test_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	store := repository.NewStore(db)
	h := NewHandler(NewService(store.Categories, store.Providers))

	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))
	h.RegisterAdminRoutes(router.Group("/api/v1/admin"))
	return router, store
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndListCategories(t *testing.T) {
	router, _ := setupRouter(t)

	w := postJSON(router, "/api/v1/admin/categories", gin.H{"name": "Plumbing", "icon": "wrench"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = postJSON(router, "/api/v1/admin/categories", gin.H{"name": "Cleaning"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(router, "/api/v1/admin/categories", gin.H{"name": "Plumbing"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Categories []domain.Category `json:"categories"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Categories, 2)
	assert.Equal(t, "Cleaning", resp.Data.Categories[0].Name)
	assert.Equal(t, "wrench", resp.Data.Categories[1].Icon)
}

func TestCategoryProviders_RankedAndApprovedOnly(t *testing.T) {
	router, store := setupRouter(t)
	ctx := context.Background()
	cat := &domain.Category{Name: "Tutoring"}
	require.NoError(t, store.Categories.Create(ctx, cat))

	for _, p := range []*domain.ServiceProvider{
		{UserID: "u1", CategoryID: cat.ID, Status: domain.ProviderApproved, Rating: 4.2, BusinessName: "second"},
		{UserID: "u2", CategoryID: cat.ID, Status: domain.ProviderApproved, Rating: 4.9, BusinessName: "first"},
		{UserID: "u3", CategoryID: cat.ID, Status: domain.ProviderSuspended, Rating: 5, BusinessName: "hidden"},
	} {
		require.NoError(t, store.Providers.Create(ctx, p))
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/categories/"+cat.ID+"/providers", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Providers []domain.ServiceProvider `json:"providers"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Providers, 2)
	assert.Equal(t, "first", resp.Data.Providers[0].BusinessName)
	assert.Equal(t, "second", resp.Data.Providers[1].BusinessName)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/categories/missing/providers", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
