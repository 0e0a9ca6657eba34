// Package batch serves POST /v1/sync: one inline records document through the pipeline.
package batch

import (
	"encoding/json"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/pkg/diagnostics"
	"github.com/Ramsey-B/fern/pkg/fields"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/query"
	"github.com/Ramsey-B/fern/pkg/sinks"
	"github.com/Ramsey-B/fern/pkg/sources"
	"github.com/Ramsey-B/fern/pkg/summary"
	"github.com/Ramsey-B/fern/pkg/utils"
)

type SyncRequest struct {
	BatchLabel string          `json:"batch_label" validate:"required"`
	Document   json.RawMessage `json:"document" validate:"required"`
	// DryRun normalizes without exporting.
	DryRun         bool `json:"dry_run"`
	IncludeRecords bool `json:"include_records"`
	// Where, SortBy and Descending shape the returned records only, never the export.
	Where      []query.Condition `json:"where" validate:"dive"`
	SortBy     string            `json:"sort_by"`
	Descending bool              `json:"descending"`
}

type SyncResponse struct {
	RunID       string                `json:"run_id"`
	BatchLabel  string                `json:"batch_label"`
	InputCount  int                   `json:"input_count"`
	RecordCount int                   `json:"record_count"`
	Unchanged   int                   `json:"unchanged"`
	PageCount   int                   `json:"page_count"`
	Columns     []string              `json:"columns"`
	Mapping     fields.FieldMapping   `json:"mapping"`
	Summary     summary.Summary       `json:"summary"`
	Warnings    []diagnostics.Warning `json:"warnings"`
	Report      *sinks.Report         `json:"report,omitempty"`
	Records     []models.FlatRecord   `json:"records,omitempty"`
}

func Register(g *echo.Group) {
	g.POST("/sync", Sync)
}

func Sync(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := utils.BindRequest[SyncRequest](c)
	if err != nil {
		return err
	}

	ctx, a, err := ectoinject.GetContext[*app.App](ctx)
	if err != nil || a == nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "sync service not available")
	}

	batch, err := sources.DecodeBatch(req.Document, req.BatchLabel, a.SourceOptions(req.BatchLabel), nil)
	if err != nil {
		return httperror.WrapError(http.StatusBadRequest, err)
	}

	var response SyncResponse
	if req.DryRun {
		result, err := a.Process(ctx, batch)
		if err != nil {
			return err
		}
		response = newResponse(result.RunID, result.BatchLabel, result.InputCount, len(result.Flat), result.Unchanged, result.PageCount(), result.Columns, result.Mapping, result.Summary, result.Warnings)
		if response.Records, err = selectRecords(req, result); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, response)
	}

	outcome, err := a.SyncBatch(ctx, batch)
	if err != nil {
		return err
	}
	result := outcome.Result
	response = newResponse(result.RunID, result.BatchLabel, result.InputCount, len(result.Flat), result.Unchanged, result.PageCount(), result.Columns, result.Mapping, result.Summary, result.Warnings)
	response.Report = &outcome.Report
	if response.Records, err = selectRecords(req, result); err != nil {
		return err
	}

	status := http.StatusOK
	if outcome.Err() != nil {
		status = http.StatusBadGateway
	}
	return c.JSON(status, response)
}

func selectRecords(req SyncRequest, result *pipeline.Result) ([]models.FlatRecord, error) {
	if !req.IncludeRecords {
		return nil, nil
	}

	records, err := query.Where(result.Flat, req.Where...)
	if err != nil {
		return nil, err
	}
	if req.SortBy != "" {
		records = query.Sort(records, req.SortBy, req.Descending)
	}
	return records, nil
}

func newResponse(runID, label string, input, count, unchanged, pages int, columns []string, mapping fields.FieldMapping, s summary.Summary, warnings []diagnostics.Warning) SyncResponse {
	if warnings == nil {
		warnings = []diagnostics.Warning{}
	}
	return SyncResponse{
		RunID:       runID,
		BatchLabel:  label,
		InputCount:  input,
		RecordCount: count,
		Unchanged:   unchanged,
		PageCount:   pages,
		Columns:     columns,
		Mapping:     mapping,
		Summary:     s,
		Warnings:    warnings,
	}
}
