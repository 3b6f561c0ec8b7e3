package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flaco-inc/flaco/internal/application/license/usecases"
	"github.com/flaco-inc/flaco/internal/shared/logger"
	"github.com/flaco-inc/flaco/internal/shared/utils"
)

type AdminLicenseHandler struct {
	getUC         *usecases.GetLicenseUseCase
	changeEmailUC *usecases.ChangeEmailUseCase
	logger        logger.Interface
}

func NewAdminLicenseHandler(
	getUC *usecases.GetLicenseUseCase,
	changeEmailUC *usecases.ChangeEmailUseCase,
	logger logger.Interface,
) *AdminLicenseHandler {
	return &AdminLicenseHandler{
		getUC:         getUC,
		changeEmailUC: changeEmailUC,
		logger:        logger,
	}
}

// @Summary		Get license
// @Description	Look up a license by billing subscription id
// @Tags			admin
// @Produce		json
// @Security		Bearer
// @Param			subscription_id	path		string								true	"Subscription ID"
// @Success		200				{object}	utils.APIResponse{data=LicenseDTO}	"License"
// @Failure		401				{object}	utils.APIResponse					"Unauthorized"
// @Failure		404				{object}	utils.APIResponse					"Not found"
// @Router			/api/admin/licenses/{subscription_id} [get]
func (h *AdminLicenseHandler) GetLicense(c *gin.Context) {
	lic, err := h.getUC.Execute(c.Request.Context(), c.Param("subscription_id"))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toLicenseDTO(lic))
}

// @Summary		Change license email
// @Description	Move a license to a new email address, issue the matching key and optionally email it
// @Tags			admin
// @Accept			json
// @Produce		json
// @Security		Bearer
// @Param			subscription_id	path		string										true	"Subscription ID"
// @Param			request			body		ChangeEmailRequest							true	"New email"
// @Success		200				{object}	utils.APIResponse{data=ChangeEmailResponse}	"Email changed"
// @Failure		400				{object}	utils.APIResponse							"Bad request"
// @Failure		401				{object}	utils.APIResponse							"Unauthorized"
// @Failure		404				{object}	utils.APIResponse							"Not found"
// @Router			/api/admin/licenses/{subscription_id}/email [put]
func (h *AdminLicenseHandler) ChangeEmail(c *gin.Context) {
	var req ChangeEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	sendEmail := req.SendEmail == nil || *req.SendEmail
	result, err := h.changeEmailUC.Execute(c.Request.Context(), usecases.ChangeEmailCommand{
		SubscriptionID: c.Param("subscription_id"),
		NewEmail:       req.Email,
		SendEmail:      sendEmail,
	})
	if err != nil {
		h.logger.Warnw("failed to change license email", "subscription_id", c.Param("subscription_id"), "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "license email changed", ChangeEmailResponse{
		License:    toLicenseDTO(result.License),
		EmailSent:  result.EmailSent,
		EmailError: result.EmailError,
	})
}
