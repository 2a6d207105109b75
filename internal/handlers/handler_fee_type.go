package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/SscSPs/student_ledger/internal/core/ports/services"
	"github.com/SscSPs/student_ledger/internal/dto"
	"github.com/SscSPs/student_ledger/internal/middleware"
)

// feeTypeHandler handles HTTP requests related to the fee type registry.
type feeTypeHandler struct {
	feeTypeService portssvc.FeeTypeSvcFacade
}

func newFeeTypeHandler(fts portssvc.FeeTypeSvcFacade) *feeTypeHandler {
	return &feeTypeHandler{feeTypeService: fts}
}

// RegisterFeeTypeRoutes registers routes related to fee types.
// Creating and toggling fee types is restricted to bursars.
func RegisterFeeTypeRoutes(rg *gin.RouterGroup, feeTypeService portssvc.FeeTypeSvcFacade) {
	h := newFeeTypeHandler(feeTypeService)

	feeTypes := rg.Group("/fee-types")
	{
		feeTypes.GET("", h.listFeeTypes)
		feeTypes.GET("/:feeTypeID", h.getFeeType)
		feeTypes.POST("", middleware.RequireRole(middleware.RoleBursar), h.createFeeType)
		feeTypes.POST("/:feeTypeID/deactivate", middleware.RequireRole(middleware.RoleBursar), h.deactivateFeeType)
		feeTypes.POST("/:feeTypeID/activate", middleware.RequireRole(middleware.RoleBursar), h.activateFeeType)
	}
}

// createFeeType godoc
// @Summary Register a fee type
// @Description Adds a fee category such as tuition or transport. Codes are unique and stored lowercase.
// @Tags fee-types
// @Accept  json
// @Produce  json
// @Param   feeType body dto.CreateFeeTypeRequest true "Fee type details"
// @Success 201 {object} dto.FeeTypeResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 409 {object} map[string]string "Code already registered"
// @Failure 500 {object} map[string]string "Failed to create fee type"
// @Security BearerAuth
// @Router /fee-types [post]
func (h *feeTypeHandler) createFeeType(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateFeeTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateFeeType", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	feeType, err := h.feeTypeService.CreateFeeType(c.Request.Context(), req, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to create fee type")
		return
	}
	c.JSON(http.StatusCreated, dto.ToFeeTypeResponse(feeType))
}

// getFeeType godoc
// @Summary Get a fee type
// @Description Retrieves a fee type by ID, including inactive ones
// @Tags fee-types
// @Produce  json
// @Param   feeTypeID path string true "Fee type ID"
// @Success 200 {object} dto.FeeTypeResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Fee type not found"
// @Failure 500 {object} map[string]string "Failed to retrieve fee type"
// @Security BearerAuth
// @Router /fee-types/{feeTypeID} [get]
func (h *feeTypeHandler) getFeeType(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	feeType, err := h.feeTypeService.GetFeeType(c.Request.Context(), c.Param("feeTypeID"))
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve fee type")
		return
	}
	c.JSON(http.StatusOK, dto.ToFeeTypeResponse(feeType))
}

// listFeeTypes godoc
// @Summary List fee types
// @Tags fee-types
// @Produce  json
// @Param   activeOnly query bool false "Only active fee types"
// @Success 200 {object} dto.ListFeeTypesResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to list fee types"
// @Security BearerAuth
// @Router /fee-types [get]
func (h *feeTypeHandler) listFeeTypes(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var params dto.ListFeeTypesParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query parameters for ListFeeTypes", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	feeTypes, err := h.feeTypeService.ListFeeTypes(c.Request.Context(), params.ActiveOnly)
	if err != nil {
		respondError(c, logger, err, "Failed to list fee types")
		return
	}
	c.JSON(http.StatusOK, dto.ToListFeeTypesResponse(feeTypes))
}

// deactivateFeeType godoc
// @Summary Deactivate a fee type
// @Description Hides the fee type from new structures. Existing structures keep referencing it.
// @Tags fee-types
// @Param   feeTypeID path string true "Fee type ID"
// @Success 204 "No Content"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 404 {object} map[string]string "Fee type not found"
// @Failure 500 {object} map[string]string "Failed to deactivate fee type"
// @Security BearerAuth
// @Router /fee-types/{feeTypeID}/deactivate [post]
func (h *feeTypeHandler) deactivateFeeType(c *gin.Context) {
	h.setActive(c, false)
}

// activateFeeType godoc
// @Summary Reactivate a fee type
// @Tags fee-types
// @Param   feeTypeID path string true "Fee type ID"
// @Success 204 "No Content"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 404 {object} map[string]string "Fee type not found"
// @Failure 500 {object} map[string]string "Failed to activate fee type"
// @Security BearerAuth
// @Router /fee-types/{feeTypeID}/activate [post]
func (h *feeTypeHandler) activateFeeType(c *gin.Context) {
	h.setActive(c, true)
}

func (h *feeTypeHandler) setActive(c *gin.Context, active bool) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}
	feeTypeID := c.Param("feeTypeID")

	var err error
	if active {
		err = h.feeTypeService.ActivateFeeType(c.Request.Context(), feeTypeID, userID)
	} else {
		err = h.feeTypeService.DeactivateFeeType(c.Request.Context(), feeTypeID, userID)
	}
	if err != nil {
		respondError(c, logger, err, "Failed to change fee type status")
		return
	}
	c.Status(http.StatusNoContent)
}
