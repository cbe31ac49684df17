package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sheetboard/config"
	"sheetboard/dataset"
	"sheetboard/editor"
	"sheetboard/errs"
	"sheetboard/obs"
	"sheetboard/utils"
)

const exportSheetName = "FilteredData"

// SheetInfo summarizes one sheet for the listing endpoint.
type SheetInfo struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// ListSheetsHandler lists the sheets of the workbook.
// @Summary      List Sheets
// @Description  Returns the name and size of every sheet in the locally cached workbook. An absent workbook yields an empty list, meaning "no data yet".
// @Tags         Sheets
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]any
// @Failure      401  {object}  utils.APIError
// @Failure      500  {object}  utils.APIError
// @Router       /sheets [get]
func ListSheetsHandler(c *gin.Context, cache *dataset.Cache, cfg *config.Config) {
	ds, err := cache.Load()
	if err != nil {
		utils.GinInternalServerError(c, fmt.Sprintf("Failed to load workbook: %v", err))
		return
	}

	sheets := make([]SheetInfo, 0, len(ds.Names))
	for _, name := range ds.Names {
		t := ds.Sheets[name]
		sheets = append(sheets, SheetInfo{Name: name, Rows: len(t.Rows), Columns: len(t.Columns)})
	}

	c.JSON(http.StatusOK, gin.H{"title": cfg.Title, "sheets": sheets})
}

// SheetResponse is one (possibly filtered) sheet plus the metadata the
// filter widgets need.
type SheetResponse struct {
	Name           string                        `json:"name"`
	Columns        []string                      `json:"columns"`
	Types          map[string]dataset.ColumnType `json:"types"`
	Rows           []dataset.Row                 `json:"rows"`
	TotalRows      int                           `json:"total_rows"`
	FilteredRows   int                           `json:"filtered_rows"`
	TextColumns    []string                      `json:"text_columns"`
	NumericColumns []string                      `json:"numeric_columns"`
}

// filteredSheet loads the named sheet and applies the optional text and
// numeric filters from the query string.
func filteredSheet(c *gin.Context, cache *dataset.Cache) (*SheetResponse, *dataset.Table, bool) {
	name := c.Param("name")

	ds, err := cache.Load()
	if err != nil {
		utils.GinInternalServerError(c, fmt.Sprintf("Failed to load workbook: %v", err))
		return nil, nil, false
	}
	table, found := ds.Sheet(name)
	if !found {
		utils.GinNotFound(c, fmt.Sprintf("Sheet '%s' not found.", name))
		return nil, nil, false
	}
	total := len(table.Rows)

	filtered := table
	if col := c.Query("text_column"); col != "" {
		filtered, err = filtered.FilterContains(col, c.Query("contains"))
		if err != nil {
			utils.GinBadRequest(c, err.Error())
			return nil, nil, false
		}
	}
	if col := c.Query("numeric_column"); col != "" {
		min, errMin := strconv.ParseFloat(c.DefaultQuery("min", "-1e308"), 64)
		max, errMax := strconv.ParseFloat(c.DefaultQuery("max", "1e308"), 64)
		if errMin != nil || errMax != nil {
			utils.GinBadRequest(c, "'min' and 'max' must be numbers.")
			return nil, nil, false
		}
		filtered, err = filtered.FilterRange(col, min, max)
		if err != nil {
			utils.GinBadRequest(c, err.Error())
			return nil, nil, false
		}
	}

	resp := &SheetResponse{
		Name:           name,
		Columns:        filtered.Columns,
		Types:          filtered.Types,
		Rows:           filtered.Rows,
		TotalRows:      total,
		FilteredRows:   len(filtered.Rows),
		TextColumns:    table.TextColumns(),
		NumericColumns: table.NumericColumns(),
	}
	return resp, filtered, true
}

// GetSheetHandler returns one sheet, optionally filtered.
// @Summary      Get Sheet
// @Description  Returns the rows of the named sheet. Optional filters: `text_column` + `contains` keeps rows whose cell contains the keyword (case-insensitive); `numeric_column` + `min`/`max` keeps rows whose numeric cell lies in the inclusive range. Filters compose.
// @Tags         Sheets
// @Produce      json
// @Security     BearerAuth
// @Param        name           path   string  true   "Sheet name"
// @Param        text_column    query  string  false  "Text column to filter on"
// @Param        contains       query  string  false  "Keyword for the text filter"
// @Param        numeric_column query  string  false  "Numeric column to filter on"
// @Param        min            query  number  false  "Inclusive lower bound"
// @Param        max            query  number  false  "Inclusive upper bound"
// @Success      200  {object}  SheetResponse
// @Failure      400  {object}  utils.APIError
// @Failure      401  {object}  utils.APIError
// @Failure      404  {object}  utils.APIError
// @Router       /sheets/{name} [get]
func GetSheetHandler(c *gin.Context, cache *dataset.Cache, cfg *config.Config) {
	resp, _, ok := filteredSheet(c, cache)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ExportSheetHandler downloads the filtered sheet as a workbook file.
// @Summary      Export Filtered Sheet
// @Description  Applies the same filters as GET /sheets/{name} and returns the result as a single-sheet workbook download.
// @Tags         Sheets
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        name path string true "Sheet name"
// @Success      200  {file}  file
// @Failure      400  {object}  utils.APIError
// @Failure      401  {object}  utils.APIError
// @Failure      404  {object}  utils.APIError
// @Router       /sheets/{name}/export [get]
func ExportSheetHandler(c *gin.Context, cache *dataset.Cache, cfg *config.Config) {
	_, filtered, ok := filteredSheet(c, cache)
	if !ok {
		return
	}

	blob, err := dataset.MarshalTable(filtered, exportSheetName)
	if err != nil {
		utils.GinInternalServerError(c, fmt.Sprintf("Failed to build export: %v", err))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="filtered_data.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", blob)
}

// TableRequest is an edited table as sent by the grid UI.
type TableRequest struct {
	Columns []string         `json:"columns" binding:"required"`
	Rows    []map[string]any `json:"rows"`
}

func (req *TableRequest) toTable() *dataset.Table {
	t := &dataset.Table{
		Columns: req.Columns,
		Types:   make(map[string]dataset.ColumnType, len(req.Columns)),
		Rows:    make([]dataset.Row, len(req.Rows)),
	}
	for i, raw := range req.Rows {
		row := make(dataset.Row, len(t.Columns))
		for _, col := range t.Columns {
			row[col] = raw[col] // Absent keys become missing values.
		}
		t.Rows[i] = row
	}
	t.InferTypes()
	return t
}

// SaveResponse reports what a save attempt did.
type SaveResponse struct {
	Saved        bool   `json:"saved"`
	Remote       string `json:"remote"` // "pushed", "skipped", or "conflict"
	VersionToken string `json:"version_token,omitempty"`
}

// UpdateSheetHandler saves an edited table, auto-save style.
// @Summary      Save Sheet
// @Description  Replaces the named sheet with the submitted table, but only when it structurally differs from the current one (the auto-save trigger). The whole workbook is rewritten locally; when remote sync is configured and a version token is held, the workbook is also pushed remotely and the token advances. A push that loses the version race returns 409 with the local save kept and the stale token left in place — re-fetch and re-apply.
// @Tags         Sheets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        name  path  string        true  "Sheet name"
// @Param        table body  TableRequest  true  "The full edited table"
// @Success      200  {object}  SaveResponse
// @Failure      400  {object}  utils.APIError
// @Failure      401  {object}  utils.APIError
// @Failure      403  {object}  utils.APIError
// @Failure      409  {object}  utils.APIError "Version conflict: someone else wrote since the last fetch."
// @Failure      500  {object}  utils.APIError
// @Failure      502  {object}  utils.APIError "The remote store rejected or failed the push."
// @Router       /sheets/{name} [put]
func UpdateSheetHandler(c *gin.Context, ed *editor.Editor, cfg *config.Config) {
	name := c.Param("name")

	var req TableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinBadRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	saved, err := ed.SaveIfChanged(c.Request.Context(), name, req.toTable())
	if err != nil {
		respondSaveError(c, name, err)
		return
	}

	if !saved {
		obs.ObserveSave("noop")
		c.JSON(http.StatusOK, SaveResponse{Saved: false, Remote: "skipped", VersionToken: ed.VersionToken()})
		return
	}

	obs.ObserveSave("ok")
	remoteState := "skipped"
	if ed.RemoteConfigured() && ed.VersionToken() != "" {
		remoteState = "pushed"
		obs.ObserveRemote("put", "ok")
	}
	c.JSON(http.StatusOK, SaveResponse{Saved: true, Remote: remoteState, VersionToken: ed.VersionToken()})
}

// AddRowRequest carries the field values for a new row. Absent columns stay
// missing.
type AddRowRequest struct {
	Fields map[string]any `json:"fields"`
}

// AddRowHandler appends one row to a sheet.
// @Summary      Add Row
// @Description  Appends one row to the named sheet (user-filled or all-missing fields) and saves through the same contract as a sheet update.
// @Tags         Sheets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        name path  string        true  "Sheet name"
// @Param        row  body  AddRowRequest false "Field values for the new row"
// @Success      200  {object}  SaveResponse
// @Failure      401  {object}  utils.APIError
// @Failure      403  {object}  utils.APIError
// @Failure      404  {object}  utils.APIError
// @Failure      409  {object}  utils.APIError
// @Failure      500  {object}  utils.APIError
// @Failure      502  {object}  utils.APIError
// @Router       /sheets/{name}/rows [post]
func AddRowHandler(c *gin.Context, ed *editor.Editor, cfg *config.Config) {
	name := c.Param("name")

	var req AddRowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.GinBadRequest(c, fmt.Sprintf("Invalid request body: %v", err))
			return
		}
	}

	if err := ed.AddRow(c.Request.Context(), name, req.Fields); err != nil {
		respondSaveError(c, name, err)
		return
	}

	obs.ObserveSave("ok")
	remoteState := "skipped"
	if ed.RemoteConfigured() && ed.VersionToken() != "" {
		remoteState = "pushed"
		obs.ObserveRemote("put", "ok")
	}
	c.JSON(http.StatusOK, SaveResponse{Saved: true, Remote: remoteState, VersionToken: ed.VersionToken()})
}

// respondSaveError maps editor failures onto HTTP responses. Conflicts and
// capacity problems are never retried here; they need a new user decision.
func respondSaveError(c *gin.Context, name string, err error) {
	switch {
	case errors.Is(err, errs.ErrConflict):
		obs.ObserveSave("conflict")
		obs.ObserveRemote("put", "conflict")
		utils.GinConflict(c, "Remote version conflict: someone else saved since your last fetch. Your change is kept locally; fetch the remote copy and re-apply.")
	case errors.Is(err, errs.ErrNotFound):
		obs.ObserveSave("error")
		utils.GinNotFound(c, fmt.Sprintf("Sheet '%s' not found.", name))
	case errors.Is(err, errs.ErrAuthError):
		obs.ObserveSave("error")
		obs.ObserveRemote("put", "auth_error")
		utils.GinBadGateway(c, "The remote store rejected the configured credential.")
	case errors.Is(err, errs.ErrNetworkError):
		obs.ObserveSave("error")
		obs.ObserveRemote("put", "network_error")
		utils.GinBadGateway(c, "The remote store could not be reached. Your change is kept locally.")
	default:
		obs.ObserveSave("error")
		utils.GinInternalServerError(c, fmt.Sprintf("Failed to save sheet '%s': %v", name, err))
	}
}
