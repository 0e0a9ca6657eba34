package utils

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
)

// BindRequest decodes and validates the request body. Both failures are 400s; validation
// failures carry the broken rules in the error meta.
func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	if err := c.Bind(&v); err != nil {
		return v, httperror.NewHTTPError(http.StatusBadRequest, "request body is not valid JSON")
	}

	v, err := Validate(v)
	if err != nil {
		httpErr := httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			httpErr.AddMetaValue("fields", validationErr.Fields)
		}
		return v, httpErr
	}

	return v, nil
}
