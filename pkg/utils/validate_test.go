package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type condition struct {
	Field string `json:"field" validate:"required"`
	Op    string `json:"op" validate:"required"`
}

type pageRequest struct {
	Label    string      `json:"label" validate:"required"`
	PageSize int         `json:"page_size" validate:"min=1"`
	Where    []condition `json:"where" validate:"dive"`
}

type envConfig struct {
	PageSize int `env:"PAGE_SIZE" validate:"min=1"`
}

func TestValidate(t *testing.T) {
	_, err := Validate(pageRequest{Label: "a", PageSize: 1})
	assert.NoError(t, err)

	_, err = Validate(pageRequest{PageSize: 0, Where: []condition{{Field: "status"}}})
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, []FieldError{
		{Field: "label", Rule: "required"},
		{Field: "page_size", Rule: "min", Param: "1"},
		{Field: "where[0].op", Rule: "required"},
	}, validationErr.Fields)
	assert.Equal(t, "validation failed (label: required; page_size: min=1; where[0].op: required)", err.Error())
}

func TestValidateUsesEnvNames(t *testing.T) {
	_, err := Validate(envConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGE_SIZE: min=1")
}

func TestBindRequest(t *testing.T) {
	e := echo.New()

	bind := func(body string) (pageRequest, error) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return BindRequest[pageRequest](e.NewContext(req, httptest.NewRecorder()))
	}

	t.Run("valid", func(t *testing.T) {
		req, err := bind(`{"label":"x","page_size":10}`)
		require.NoError(t, err)
		assert.Equal(t, 10, req.PageSize)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := bind(`{`)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("fails validation", func(t *testing.T) {
		_, err := bind(`{"page_size":0}`)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))

		var httpErr *httperror.HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.NotEmpty(t, httpErr.Meta["fields"])
	})
}
