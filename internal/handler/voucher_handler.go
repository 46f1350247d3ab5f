package handler

import (
	"net/http"
	"strconv"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

var voucherActionPerms = map[string]string{
	"audit": service.PermVouchersAudit,
}

type VoucherHandler struct {
	voucherService service.VoucherService
}

func NewVoucherHandler(voucherService service.VoucherService) *VoucherHandler {
	return &VoucherHandler{voucherService: voucherService}
}

func (h *VoucherHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Auth) {
	vouchers := router.Group("/vouchers")
	{
		vouchers.GET("", auth.RequirePermission(service.PermVouchersRead), h.ListVouchers)
		vouchers.POST("", auth.RequirePermission(service.PermVouchersWrite), h.CreateVoucher)
		vouchers.GET("/:id", auth.RequirePermission(service.PermVouchersRead), h.GetVoucher)
		vouchers.POST("/:id/transitions", auth.RequirePermission(service.PermVouchersWrite),
			auth.RequireActionPermission(voucherActionPerms), h.TransitionVoucher)
		vouchers.GET("/:id/approvals", auth.RequirePermission(service.PermVouchersRead), h.GetApprovals)
		vouchers.GET("/:id/pdf", auth.RequirePermission(service.PermVouchersRead), h.DownloadPDF)
	}
}

// ListVouchers returns disbursement vouchers
// @Summary      List vouchers
// @Tags         vouchers
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Status filter"
// @Param        search  query     string  false  "Voucher number, payee or check number"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.VoucherResponse}
// @Router       /vouchers [get]
func (h *VoucherHandler) ListVouchers(c *gin.Context) {
	params := pagination.Parse(c)

	vouchers, total, err := h.voucherService.ListVouchers(c.Request.Context(), service.VoucherFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(vouchers, pagination.NewMeta(params, total)))
}

// CreateVoucher prepares a voucher whose distribution lines must sum to the check amount
// @Summary      Create voucher
// @Tags         vouchers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateVoucherRequest  true  "Voucher"
// @Success      201      {object}  response.Response{data=service.VoucherResponse}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /vouchers [post]
func (h *VoucherHandler) CreateVoucher(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.CreateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	voucher, err := h.voucherService.CreateVoucher(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success("Voucher created", voucher))
}

// GetVoucher returns one voucher with its distribution lines
// @Summary      Get voucher
// @Tags         vouchers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Voucher ID"
// @Success      200  {object}  response.Response{data=service.VoucherResponse}
// @Failure      404  {object}  response.Response
// @Router       /vouchers/{id} [get]
func (h *VoucherHandler) GetVoucher(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	voucher, err := h.voucherService.GetVoucher(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("", voucher))
}

// TransitionVoucher moves a voucher from audit to payment
// @Summary      Transition voucher
// @Description  audit requires the caller's password; prepare_check requires check_no
// @Tags         vouchers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Voucher ID"
// @Param        payload  body      service.TransitionRequest  true  "Action"
// @Success      200      {object}  response.Response{data=service.TransitionResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /vouchers/{id}/transitions [post]
func (h *VoucherHandler) TransitionVoucher(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.TransitionRequest
	if err := c.ShouldBindBodyWithJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.voucherService.TransitionVoucher(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("Voucher "+res.Status, res))
}

// GetApprovals returns the voucher's approval history
// @Summary      Voucher approval history
// @Tags         vouchers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Voucher ID"
// @Success      200  {object}  response.Response{data=[]service.ApprovalResponse}
// @Router       /vouchers/{id}/approvals [get]
func (h *VoucherHandler) GetApprovals(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	history, err := h.voucherService.GetApprovals(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("", history))
}

// DownloadPDF prints the voucher with its signatories
// @Summary      Print voucher
// @Tags         vouchers
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path  string  true  "Voucher ID"
// @Success      200
// @Failure      404  {object}  response.Response
// @Router       /vouchers/{id}/pdf [get]
func (h *VoucherHandler) DownloadPDF(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	pdf, filename, err := h.voucherService.RenderPDF(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", "inline; filename="+strconv.Quote(filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
