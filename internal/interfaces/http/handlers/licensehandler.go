package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flaco-inc/flaco/internal/application/license/usecases"
	"github.com/flaco-inc/flaco/internal/interfaces/http/middleware"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/internal/shared/utils"
	"github.com/flaco-inc/flaco/pkg/licensekey"
)

const resendAcknowledgement = "if a license exists for this email, it has been sent"

// LicenseLimits are the per-email budgets checked after the body is parsed.
type LicenseLimits struct {
	VerifyPerEmail int
	ResendPerEmail int
}

type LicenseHandler struct {
	verifyUC      *usecases.VerifyLicenseUseCase
	resendUC      *usecases.ResendLicenseUseCase
	activationsUC *usecases.ManageActivationsUseCase
	limiter       *middleware.RateLimiter
	limits        LicenseLimits
	logger        logger.Interface
}

func NewLicenseHandler(
	verifyUC *usecases.VerifyLicenseUseCase,
	resendUC *usecases.ResendLicenseUseCase,
	activationsUC *usecases.ManageActivationsUseCase,
	limiter *middleware.RateLimiter,
	limits LicenseLimits,
	logger logger.Interface,
) *LicenseHandler {
	return &LicenseHandler{
		verifyUC:      verifyUC,
		resendUC:      resendUC,
		activationsUC: activationsUC,
		limiter:       limiter,
		limits:        limits,
		logger:        logger,
	}
}

// VerifyRateLimited is the 429 body for the verify endpoint.
func VerifyRateLimited(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, VerifyLicenseResponse{Error: "rate limit exceeded"})
}

// @Summary		Verify license
// @Description	Check an (email, license key) pair and record the calling device
// @Tags			license
// @Accept			json
// @Produce		json
// @Param			request	body		VerifyLicenseRequest	true	"License credentials and optional device identity"
// @Success		200		{object}	VerifyLicenseResponse	"Verification verdict"
// @Failure		400		{object}	VerifyLicenseResponse	"Malformed request"
// @Failure		429		{object}	VerifyLicenseResponse	"Rate limit exceeded"
// @Failure		500		{object}	VerifyLicenseResponse	"Internal server error"
// @Router			/api/license/verify [post]
func (h *LicenseHandler) Verify(c *gin.Context) {
	var req VerifyLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, VerifyLicenseResponse{Error: "email and license_key are required"})
		return
	}

	if !h.limiter.Allow(c, "verify:email", licensekey.NormalizeEmail(req.Email), h.limits.VerifyPerEmail) {
		VerifyRateLimited(c)
		return
	}

	result, err := h.verifyUC.Execute(c.Request.Context(), usecases.VerifyLicenseCommand{
		Email:      req.Email,
		LicenseKey: req.LicenseKey,
		Device:     req.device(),
	})
	if err != nil {
		h.logger.Errorw("license verification failed", "error", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, VerifyLicenseResponse{Error: "verification unavailable"})
		return
	}

	if !result.Valid {
		c.JSON(http.StatusOK, VerifyLicenseResponse{Success: true, Valid: false})
		return
	}

	c.JSON(http.StatusOK, VerifyLicenseResponse{
		Success: true,
		Valid:   true,
		Tier:    result.Tier.String(),
		Expires: result.ExpiresAt.UTC().Format(time.RFC3339),
		Email:   result.Email,
		Receipt: result.Receipt,
	})
}

// @Summary		Resend license email
// @Description	Email the current license for an address. The response does not reveal whether one exists.
// @Tags			license
// @Accept			json
// @Produce		json
// @Param			request	body		ResendLicenseRequest	true	"Email and optional tier"
// @Success		200		{object}	utils.APIResponse		"Request accepted"
// @Failure		400		{object}	utils.APIResponse		"Bad request"
// @Failure		429		{object}	utils.APIResponse		"Rate limit exceeded"
// @Failure		500		{object}	utils.APIResponse		"Internal server error"
// @Router			/api/license/resend [post]
func (h *LicenseHandler) Resend(c *gin.Context) {
	var req ResendLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if !h.limiter.Allow(c, "resend:email", licensekey.NormalizeEmail(req.Email), h.limits.ResendPerEmail) {
		utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
		return
	}

	if _, err := h.resendUC.Execute(c.Request.Context(), usecases.ResendLicenseCommand{
		Email: req.Email,
		Tier:  req.Tier,
	}); err != nil {
		h.logger.Errorw("license resend failed", "email", utils.MaskEmail(req.Email), "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, resendAcknowledgement, nil)
}

// @Summary		List device activations
// @Description	List devices that have verified with this license
// @Tags			license
// @Accept			json
// @Produce		json
// @Param			request	body		LicenseCredentialsRequest						true	"License credentials"
// @Success		200		{object}	utils.APIResponse{data=[]ActivationDTO}	"Activations"
// @Failure		400		{object}	utils.APIResponse								"Bad request"
// @Failure		401		{object}	utils.APIResponse								"Invalid license"
// @Failure		500		{object}	utils.APIResponse								"Internal server error"
// @Router			/api/license/activations [post]
func (h *LicenseHandler) ListActivations(c *gin.Context) {
	var req LicenseCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	activations, err := h.activationsUC.List(c.Request.Context(), req.Email, req.LicenseKey)
	if err != nil {
		h.activationError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", toActivationDTOs(activations))
}

// @Summary		Reset device activations
// @Description	Forget every device recorded for this license
// @Tags			license
// @Accept			json
// @Produce		json
// @Param			request	body		LicenseCredentialsRequest							true	"License credentials"
// @Success		200		{object}	utils.APIResponse{data=ResetActivationsResponse}	"Activations removed"
// @Failure		400		{object}	utils.APIResponse									"Bad request"
// @Failure		401		{object}	utils.APIResponse									"Invalid license"
// @Failure		500		{object}	utils.APIResponse									"Internal server error"
// @Router			/api/license/activations/reset [post]
func (h *LicenseHandler) ResetActivations(c *gin.Context) {
	var req LicenseCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	removed, err := h.activationsUC.Reset(c.Request.Context(), req.Email, req.LicenseKey)
	if err != nil {
		h.activationError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "activations reset", ResetActivationsResponse{Reset: removed})
}

func (h *LicenseHandler) activationError(c *gin.Context, err error) {
	if errors.Is(err, usecases.ErrInvalidLicense) {
		utils.ErrorResponse(c, http.StatusUnauthorized, "invalid license")
		return
	}
	h.logger.Errorw("activation request failed", "error", err)
	utils.ErrorResponseWithError(c, err)
}
