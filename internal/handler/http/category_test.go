package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chautari/chautari/internal/domain"
	apperrors "github.com/chautari/chautari/pkg/errors"
)

const categoryID = "720e8400-e29b-41d4-a716-446655440002"

func sampleCategories() []domain.Category {
	now := time.Now().UTC()
	return []domain.Category{
		{ID: categoryID, Name: "Textbooks", Slug: "textbooks", CreatedAt: now},
		{ID: "720e8400-e29b-41d4-a716-446655440005", Name: "Electronics", Slug: "electronics", CreatedAt: now},
	}
}

func TestListCategories_Public(t *testing.T) {
	repos := newTestRepos()
	router := setupServer(repos)

	repos.categories.On("List", mock.Anything).Return(sampleCategories(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	items, ok := env.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestCreateCategory_StaffOnly(t *testing.T) {
	repos := newTestRepos()
	router := setupServer(repos)

	rec := postJSON(t, router, "/api/categories", CreateCategoryRequest{
		Name: "Lab Equipment",
	}, bearerFor(t, sellerID, "user"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	repos.categories.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateCategory_AsStaff(t *testing.T) {
	repos := newTestRepos()
	router := setupServer(repos)

	repos.categories.On("Create", mock.Anything, mock.AnythingOfType("*domain.Category")).Return(nil)

	rec := postJSON(t, router, "/api/categories", CreateCategoryRequest{
		Name:        "Lab Equipment",
		Description: "Microscopes, glassware and kits.",
	}, bearerFor(t, "880e8400-e29b-41d4-a716-446655440000", "staff"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "lab-equipment", data["slug"])
	repos.categories.AssertExpectations(t)
}

func TestDeleteCategory_ConflictWhileReferenced(t *testing.T) {
	repos := newTestRepos()
	router := setupServer(repos)

	repos.categories.On("Delete", mock.Anything, categoryID).Return(apperrors.Conflict("category still has listings"))

	req := httptest.NewRequest(http.MethodDelete, "/api/categories/"+categoryID, nil)
	req.Header.Set("Authorization", bearerFor(t, "880e8400-e29b-41d4-a716-446655440000", "staff"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "still has listings")
}
