package utils

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amankumarsingh77/dubbing-pipeline/pkg/apperrors"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginationFromCtx(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/jobs?page=3&size=10", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	p, err := GetPaginationFromCtx(c)
	require.NoError(t, err)
	assert.Equal(t, 20, p.GetOffset())
	assert.Equal(t, 10, p.GetLimit())

	req = httptest.NewRequest(http.MethodGet, "/jobs?size=abc", nil)
	_, err = GetPaginationFromCtx(e.NewContext(req, httptest.NewRecorder()))
	assert.Error(t, err)
}

func TestNewPaginationClamps(t *testing.T) {
	t.Parallel()

	p := NewPagination(0, 10000)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, maxSize, p.Size)
	assert.Equal(t, defaultSize, NewPagination(1, 0).Size)
	assert.Equal(t, 3, GetTotalPages(21, 10))
	assert.True(t, GetHasMore(2, 21, 10))
	assert.False(t, GetHasMore(3, 21, 10))
}

func TestOperatorTokenRoundTrip(t *testing.T) {
	t.Parallel()

	token, err := GenerateOperatorToken("ops", "secret", time.Minute)
	require.NoError(t, err)

	claims, err := ValidateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)

	_, err = ValidateToken(token, "other-secret")
	assert.Error(t, err)
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusNotFound, ErrorStatus(fmt.Errorf("load: %w", apperrors.ErrNotFound)))
	assert.Equal(t, http.StatusBadRequest, ErrorStatus(apperrors.ErrInvalidArtifact))
	assert.Equal(t, http.StatusConflict, ErrorStatus(apperrors.ErrConflict))
	assert.Equal(t, http.StatusInternalServerError, ErrorStatus(fmt.Errorf("boom")))
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	type input struct {
		Key string `validate:"required"`
	}
	assert.Error(t, ValidateStruct(context.Background(), &input{}))
	assert.NoError(t, ValidateStruct(context.Background(), &input{Key: "k"}))
}

func TestWaitForCPUDisabled(t *testing.T) {
	t.Parallel()

	assert.NoError(t, WaitForCPU(context.Background(), 0, time.Millisecond))
}
