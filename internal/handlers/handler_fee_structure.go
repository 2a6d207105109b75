package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	portssvc "github.com/SscSPs/student_ledger/internal/core/ports/services"
	"github.com/SscSPs/student_ledger/internal/dto"
	"github.com/SscSPs/student_ledger/internal/middleware"
)

// feeStructureHandler handles HTTP requests related to fee structures.
type feeStructureHandler struct {
	structureService portssvc.FeeStructureSvcFacade
}

func newFeeStructureHandler(fss portssvc.FeeStructureSvcFacade) *feeStructureHandler {
	return &feeStructureHandler{structureService: fss}
}

// RegisterFeeStructureRoutes registers routes related to fee structures and their components.
func RegisterFeeStructureRoutes(rg *gin.RouterGroup, structureService portssvc.FeeStructureSvcFacade) {
	h := newFeeStructureHandler(structureService)
	bursarOnly := middleware.RequireRole(middleware.RoleBursar)

	structures := rg.Group("/fee-structures")
	{
		structures.GET("", h.listStructures)
		structures.GET("/:structureID", h.getStructure)
		structures.GET("/:structureID/total", h.getEffectiveTotal)
		structures.POST("", bursarOnly, h.createStructure)
		structures.DELETE("/:structureID", bursarOnly, h.deleteStructure)
		structures.POST("/:structureID/components", bursarOnly, h.addComponent)
		structures.PATCH("/:structureID/components/:componentID", bursarOnly, h.updateComponent)
		structures.DELETE("/:structureID/components/:componentID", bursarOnly, h.removeComponent)
	}
}

// createStructure godoc
// @Summary Create a fee structure
// @Description Composes a structure from active fee types. The code must be unique within the academic year.
// @Tags fee-structures
// @Accept  json
// @Produce  json
// @Param   structure body dto.CreateFeeStructureRequest true "Fee structure with at least one component"
// @Success 201 {object} dto.FeeStructureResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 500 {object} map[string]string "Failed to create fee structure"
// @Security BearerAuth
// @Router /fee-structures [post]
func (h *feeStructureHandler) createStructure(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateFeeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateFeeStructure", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	structure, err := h.structureService.CreateStructure(c.Request.Context(), req, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to create fee structure")
		return
	}
	c.JSON(http.StatusCreated, dto.ToFeeStructureResponse(structure))
}

// getStructure godoc
// @Summary Get a fee structure
// @Tags fee-structures
// @Produce  json
// @Param   structureID path string true "Fee structure ID"
// @Success 200 {object} dto.FeeStructureResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Fee structure not found"
// @Failure 500 {object} map[string]string "Failed to retrieve fee structure"
// @Security BearerAuth
// @Router /fee-structures/{structureID} [get]
func (h *feeStructureHandler) getStructure(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	structure, err := h.structureService.GetStructure(c.Request.Context(), c.Param("structureID"))
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve fee structure")
		return
	}
	c.JSON(http.StatusOK, dto.ToFeeStructureResponse(structure))
}

// listStructures godoc
// @Summary List fee structures of an academic year
// @Tags fee-structures
// @Produce  json
// @Param   academicYearID query string true "Academic year"
// @Success 200 {object} dto.ListFeeStructuresResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to list fee structures"
// @Security BearerAuth
// @Router /fee-structures [get]
func (h *feeStructureHandler) listStructures(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var params dto.ListFeeStructuresParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query parameters for ListFeeStructures", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	structures, err := h.structureService.ListStructures(c.Request.Context(), params.AcademicYearID)
	if err != nil {
		respondError(c, logger, err, "Failed to list fee structures")
		return
	}
	c.JSON(http.StatusOK, dto.ToListFeeStructuresResponse(structures))
}

// getEffectiveTotal godoc
// @Summary Live total of a fee structure
// @Description Sums the components on read; the stored total is never trusted.
// @Tags fee-structures
// @Produce  json
// @Param   structureID path string true "Fee structure ID"
// @Success 200 {object} dto.EffectiveTotalResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Fee structure not found"
// @Failure 500 {object} map[string]string "Failed to compute total"
// @Security BearerAuth
// @Router /fee-structures/{structureID}/total [get]
func (h *feeStructureHandler) getEffectiveTotal(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	structureID := c.Param("structureID")

	total, err := h.structureService.GetEffectiveTotal(c.Request.Context(), structureID)
	if err != nil {
		respondError(c, logger, err, "Failed to compute total")
		return
	}
	mandatory, err := h.structureService.GetMandatoryTotal(c.Request.Context(), structureID)
	if err != nil {
		respondError(c, logger, err, "Failed to compute total")
		return
	}
	c.JSON(http.StatusOK, dto.EffectiveTotalResponse{
		StructureID:    structureID,
		Total:          total,
		MandatoryTotal: mandatory,
	})
}

// deleteStructure godoc
// @Summary Delete a fee structure and its components
// @Tags fee-structures
// @Param   structureID path string true "Fee structure ID"
// @Success 204 "No Content"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 404 {object} map[string]string "Fee structure not found"
// @Failure 500 {object} map[string]string "Failed to delete fee structure"
// @Security BearerAuth
// @Router /fee-structures/{structureID} [delete]
func (h *feeStructureHandler) deleteStructure(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}
	if err := h.structureService.DeleteStructure(c.Request.Context(), c.Param("structureID"), userID); err != nil {
		respondError(c, logger, err, "Failed to delete fee structure")
		return
	}
	c.Status(http.StatusNoContent)
}

// addComponent godoc
// @Summary Add a component to a fee structure
// @Description The structure total is recomputed in the same database transaction.
// @Tags fee-structures
// @Accept  json
// @Produce  json
// @Param   structureID path string true "Fee structure ID"
// @Param   component body dto.FeeStructureComponentRequest true "Component"
// @Success 200 {object} dto.FeeStructureResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 404 {object} map[string]string "Fee structure not found"
// @Failure 500 {object} map[string]string "Failed to add component"
// @Security BearerAuth
// @Router /fee-structures/{structureID}/components [post]
func (h *feeStructureHandler) addComponent(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.FeeStructureComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for AddComponent", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	structure, err := h.structureService.AddComponent(c.Request.Context(), c.Param("structureID"), req, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to add component")
		return
	}
	c.JSON(http.StatusOK, dto.ToFeeStructureResponse(structure))
}

// updateComponent godoc
// @Summary Change a component of a fee structure
// @Tags fee-structures
// @Accept  json
// @Produce  json
// @Param   structureID path string true "Fee structure ID"
// @Param   componentID path int true "Component ID"
// @Param   component body dto.UpdateFeeStructureComponentRequest true "Fields to change"
// @Success 200 {object} dto.FeeStructureResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 404 {object} map[string]string "Fee structure or component not found"
// @Failure 500 {object} map[string]string "Failed to update component"
// @Security BearerAuth
// @Router /fee-structures/{structureID}/components/{componentID} [patch]
func (h *feeStructureHandler) updateComponent(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	componentID, ok := parseIDParam(c, logger, "componentID")
	if !ok {
		return
	}
	var req dto.UpdateFeeStructureComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for UpdateComponent", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	structure, err := h.structureService.UpdateComponent(c.Request.Context(), c.Param("structureID"), componentID, req, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to update component")
		return
	}
	c.JSON(http.StatusOK, dto.ToFeeStructureResponse(structure))
}

// removeComponent godoc
// @Summary Remove a component from a fee structure
// @Description The last component cannot be removed.
// @Tags fee-structures
// @Produce  json
// @Param   structureID path string true "Fee structure ID"
// @Param   componentID path int true "Component ID"
// @Success 200 {object} dto.FeeStructureResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 404 {object} map[string]string "Fee structure or component not found"
// @Failure 500 {object} map[string]string "Failed to remove component"
// @Security BearerAuth
// @Router /fee-structures/{structureID}/components/{componentID} [delete]
func (h *feeStructureHandler) removeComponent(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	componentID, ok := parseIDParam(c, logger, "componentID")
	if !ok {
		return
	}
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	structure, err := h.structureService.RemoveComponent(c.Request.Context(), c.Param("structureID"), componentID, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to remove component")
		return
	}
	c.JSON(http.StatusOK, dto.ToFeeStructureResponse(structure))
}

// parseIDParam reads a positive integer path parameter or writes 400.
func parseIDParam(c *gin.Context, logger *slog.Logger, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		logger.Warn("Invalid path parameter", slog.String("param", name), slog.String("value", c.Param(name)))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}
