package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"dbmlviewer/internal/diagram"
	"dbmlviewer/internal/responses"
	"dbmlviewer/internal/services"
)

// SchemaHandler serves the stateless schema endpoints. Nothing is stored.
type SchemaHandler struct {
	schemaService *services.SchemaService
}

func NewSchemaHandler(schemaService *services.SchemaService) *SchemaHandler {
	return &SchemaHandler{schemaService: schemaService}
}

type parseRequest struct {
	DBML        string          `json:"dbml"`
	CanvasState json.RawMessage `json:"canvasState"`
}

type importRequest struct {
	SQL     string `json:"sql" binding:"required"`
	Dialect string `json:"dialect"`
}

type exportRequest struct {
	parseRequest
	services.ExportOptions
}

// Parse handles POST /api/v1/schema/parse
func (h *SchemaHandler) Parse(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, bindStatus(err), err, "Invalid request body")
		return
	}
	canvas, err := diagram.ParseCanvasState(req.CanvasState)
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid canvas state")
		return
	}

	g, err := h.schemaService.Parse(req.DBML, canvas)
	if err != nil {
		fail(c, err, "Schema could not be parsed")
		return
	}

	responses.Success(c, http.StatusOK, g, "Schema parsed successfully")
}

// Import handles POST /api/v1/schema/import
func (h *SchemaHandler) Import(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, bindStatus(err), err, "Please provide the SQL to import")
		return
	}
	if req.Dialect == "" {
		req.Dialect = "postgres"
	}

	g, err := h.schemaService.Import(req.SQL, req.Dialect)
	if err != nil {
		fail(c, err, "SQL could not be imported")
		return
	}

	responses.Success(c, http.StatusOK, g, "SQL imported successfully")
}

// Export handles POST /api/v1/schema/export
func (h *SchemaHandler) Export(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, bindStatus(err), err, "Invalid request body")
		return
	}
	canvas, err := diagram.ParseCanvasState(req.CanvasState)
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid canvas state")
		return
	}

	a, err := h.schemaService.Export(req.DBML, canvas, req.ExportOptions)
	if err != nil {
		fail(c, err, "Schema could not be exported")
		return
	}

	responses.Attachment(c, a.Filename, a.ContentType, a.Data)
}
