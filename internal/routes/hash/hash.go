// Package hash serves POST /v1/hash, the content hash of a single record.
package hash

import (
	"encoding/json"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/utils"
)

type HashRequest struct {
	Record json.RawMessage `json:"record" validate:"required"`
	// Exclude lists dotted field paths left out of the hash.
	Exclude []string `json:"exclude"`
}

type HashResponse struct {
	ContentHash fingerprint.ContentHash `json:"content_hash"`
}

func Register(g *echo.Group) {
	g.POST("/hash", Hash)
}

func Hash(c echo.Context) error {
	req, err := utils.BindRequest[HashRequest](c)
	if err != nil {
		return err
	}

	value, err := models.ParseJSON(req.Record)
	if err != nil {
		return httperror.WrapError(http.StatusBadRequest, err)
	}
	if value.Kind() != models.KindObject {
		return httperror.NewHTTPError(http.StatusBadRequest, "record must be a JSON object")
	}

	exclude := make(map[string]bool, len(req.Exclude))
	for _, path := range req.Exclude {
		exclude[path] = true
	}

	return c.JSON(http.StatusOK, HashResponse{ContentHash: fingerprint.DigestExcluding(value, exclude)})
}
