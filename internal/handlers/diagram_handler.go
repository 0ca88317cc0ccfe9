package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dbmlviewer/internal/responses"
	"dbmlviewer/internal/services"
)

type DiagramHandler struct {
	diagramService *services.DiagramService
}

func NewDiagramHandler(diagramService *services.DiagramService) *DiagramHandler {
	return &DiagramHandler{diagramService: diagramService}
}

// CreateDiagram handles POST /api/v1/diagrams
func (h *DiagramHandler) CreateDiagram(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	var req services.CreateDiagramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, bindStatus(err), err, "Invalid request body")
		return
	}

	d, err := h.diagramService.Create(c.Request.Context(), owner, req)
	if err != nil {
		fail(c, err, "Failed to create diagram")
		return
	}

	responses.Success(c, http.StatusCreated, d, "Diagram created successfully")
}

// GetDiagram handles GET /api/v1/diagrams/:id
func (h *DiagramHandler) GetDiagram(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	d, err := h.diagramService.Get(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		fail(c, err, "Diagram not found or access denied")
		return
	}

	responses.Success(c, http.StatusOK, d, "Diagram retrieved successfully")
}

// ListDiagrams handles GET /api/v1/diagrams?page=&perPage=
func (h *DiagramHandler) ListDiagrams(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	page, err := queryInt(c, "page")
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid page")
		return
	}
	perPage, err := queryInt(c, "perPage")
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid perPage")
		return
	}

	result, err := h.diagramService.List(c.Request.Context(), owner, page, perPage)
	if err != nil {
		fail(c, err, "Failed to retrieve diagrams")
		return
	}

	responses.Success(c, http.StatusOK, result, "Diagrams retrieved successfully")
}

// UpdateDiagram handles PATCH /api/v1/diagrams/:id
func (h *DiagramHandler) UpdateDiagram(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	var req services.UpdateDiagramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, bindStatus(err), err, "Invalid request body")
		return
	}

	d, err := h.diagramService.Update(c.Request.Context(), owner, c.Param("id"), req)
	if err != nil {
		fail(c, err, "Failed to update diagram")
		return
	}

	responses.Success(c, http.StatusOK, d, "Diagram updated successfully")
}

// DeleteDiagram handles DELETE /api/v1/diagrams/:id
func (h *DiagramHandler) DeleteDiagram(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	if err := h.diagramService.Delete(c.Request.Context(), owner, c.Param("id")); err != nil {
		fail(c, err, "Diagram not found or access denied")
		return
	}

	responses.Success(c, http.StatusOK, nil, "Diagram deleted successfully")
}

// ExportDiagram handles GET /api/v1/diagrams/:id/export?kind=&dialect=&pixelRatio=
func (h *DiagramHandler) ExportDiagram(c *gin.Context) {
	owner, ok := userID(c)
	if !ok {
		responses.Fail(c, http.StatusUnauthorized, nil, "Unauthorized")
		return
	}

	var opts services.ExportOptions
	if err := c.ShouldBindQuery(&opts); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid export parameters")
		return
	}

	a, err := h.diagramService.Export(c.Request.Context(), owner, c.Param("id"), opts)
	if err != nil {
		fail(c, err, "Failed to export diagram")
		return
	}

	responses.Attachment(c, a.Filename, a.ContentType, a.Data)
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
