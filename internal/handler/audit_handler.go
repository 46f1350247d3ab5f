package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/repository"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Auth) {
	router.GET("/audit-logs", auth.RequirePermission(service.PermAuditRead), h.GetAuditLogs)
}

// GetAuditLogs returns the activity log, newest first
// @Summary      Get audit logs
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        log_name      query     string  false  "Log name (request, order, canvas, ...)"
// @Param        subject_type  query     string  false  "Subject type"
// @Param        subject_id    query     string  false  "Subject ID"
// @Param        page          query     int     false  "Page number (default 1)"
// @Param        limit         query     int     false  "Items per page (default 20)"
// @Success      200           {object}  response.Response{data=[]service.AuditLogResponse}
// @Router       /audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), repository.AuditFilter{
		LogName:     c.Query("log_name"),
		SubjectType: c.Query("subject_type"),
		SubjectID:   c.Query("subject_id"),
		Page:        params.Page,
		Limit:       params.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(logs, pagination.NewMeta(params, total)))
}
