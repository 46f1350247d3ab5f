package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

var pettyCashActionPerms = map[string]string{
	"release": service.PermPettyCashRelease,
}

type PettyCashHandler struct {
	pettyCashService service.PettyCashService
}

func NewPettyCashHandler(pettyCashService service.PettyCashService) *PettyCashHandler {
	return &PettyCashHandler{pettyCashService: pettyCashService}
}

func (h *PettyCashHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Auth) {
	pcv := router.Group("/petty-cash")
	{
		pcv.GET("", auth.RequirePermission(service.PermPettyCashRead), h.ListPettyCash)
		pcv.POST("", auth.RequirePermission(service.PermPettyCashWrite), h.CreatePettyCash)
		pcv.GET("/:id", auth.RequirePermission(service.PermPettyCashRead), h.GetPettyCash)
		pcv.POST("/:id/transitions", auth.RequirePermission(service.PermPettyCashWrite),
			auth.RequireActionPermission(pettyCashActionPerms), h.TransitionPettyCash)
		pcv.GET("/:id/approvals", auth.RequirePermission(service.PermPettyCashRead), h.GetApprovals)
		pcv.POST("/:id/items/:itemId/receipt", auth.RequirePermission(service.PermPettyCashWrite), h.UploadReceipt)
	}

	funds := router.Group("/petty-cash-funds")
	{
		funds.GET("", auth.RequirePermission(service.PermFundsManage), h.ListFunds)
		funds.POST("", auth.RequirePermission(service.PermFundsManage), h.CreateFund)
		funds.GET("/:custodianId", auth.RequirePermission(service.PermPettyCashRead), h.Balance)
		funds.POST("/:custodianId/replenish", auth.RequirePermission(service.PermFundsManage), h.Replenish)
	}
}

// ListPettyCash returns petty cash vouchers. Staff only see their own.
// @Summary      List petty cash vouchers
// @Tags         petty-cash
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Status filter"
// @Param        search  query     string  false  "PCV number or purpose"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.PettyCashResponse}
// @Router       /petty-cash [get]
func (h *PettyCashHandler) ListPettyCash(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)

	list, total, err := h.pettyCashService.ListPettyCash(c.Request.Context(), p, service.PettyCashFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(list, pagination.NewMeta(params, total)))
}

// CreatePettyCash files a petty cash voucher with its items and account distribution
// @Summary      Create petty cash voucher
// @Tags         petty-cash
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePettyCashRequest  true  "Petty cash voucher"
// @Success      201      {object}  response.Response{data=service.PettyCashResponse}
// @Failure      422      {object}  response.Response
// @Router       /petty-cash [post]
func (h *PettyCashHandler) CreatePettyCash(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.CreatePettyCashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	pc, err := h.pettyCashService.CreatePettyCash(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success("Petty cash voucher created", pc))
}

// GetPettyCash returns one petty cash voucher
// @Summary      Get petty cash voucher
// @Tags         petty-cash
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Petty cash ID"
// @Success      200  {object}  response.Response{data=service.PettyCashResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /petty-cash/{id} [get]
func (h *PettyCashHandler) GetPettyCash(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	pc, err := h.pettyCashService.GetPettyCash(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("", pc))
}

// TransitionPettyCash moves a petty cash voucher. Release debits the bursar's fund.
// @Summary      Transition petty cash voucher
// @Tags         petty-cash
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Petty cash ID"
// @Param        payload  body      service.TransitionRequest  true  "Action"
// @Success      200      {object}  response.Response{data=service.TransitionResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /petty-cash/{id}/transitions [post]
func (h *PettyCashHandler) TransitionPettyCash(c *gin.Context) {
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

	res, err := h.pettyCashService.TransitionPettyCash(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("Petty cash "+res.Status, res))
}

// GetApprovals returns the petty cash voucher's approval history
// @Summary      Petty cash approval history
// @Tags         petty-cash
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Petty cash ID"
// @Success      200  {object}  response.Response{data=[]service.ApprovalResponse}
// @Router       /petty-cash/{id}/approvals [get]
func (h *PettyCashHandler) GetApprovals(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	history, err := h.pettyCashService.GetApprovals(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("", history))
}

// UploadReceipt attaches or replaces the receipt of one item
// @Summary      Upload item receipt
// @Tags         petty-cash
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id      path      string  true  "Petty cash ID"
// @Param        itemId  path      string  true  "Item ID"
// @Param        file    formData  file    true  "Receipt"
// @Success      201     {object}  response.Response{data=service.PettyCashItemResponse}
// @Router       /petty-cash/{id}/items/{itemId}/receipt [post]
func (h *PettyCashHandler) UploadReceipt(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return
	}
	upload, closer, ok := formUpload(c)
	if !ok {
		return
	}
	defer closer.Close()

	item, err := h.pettyCashService.UploadReceipt(c.Request.Context(), p, id, itemID, upload)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success("Receipt uploaded", item))
}

// ListFunds returns every custodian's revolving fund
// @Summary      List petty cash funds
// @Tags         petty-cash
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.FundResponse}
// @Router       /petty-cash-funds [get]
func (h *PettyCashHandler) ListFunds(c *gin.Context) {
	funds, err := h.pettyCashService.ListFunds(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("", funds))
}

// CreateFund opens a custodian's fund with an optional opening balance
// @Summary      Create petty cash fund
// @Tags         petty-cash
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateFundRequest  true  "Fund"
// @Success      201      {object}  response.Response{data=service.FundResponse}
// @Failure      409      {object}  response.Response
// @Router       /petty-cash-funds [post]
func (h *PettyCashHandler) CreateFund(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.CreateFundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	fund, err := h.pettyCashService.CreateFund(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success("Fund created", fund))
}

// Balance returns a custodian's balance and recent ledger entries
// @Summary      Petty cash fund balance
// @Tags         petty-cash
// @Security     BearerAuth
// @Produce      json
// @Param        custodianId  path      string  true   "Custodian user ID"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Items per page (default 20)"
// @Success      200          {object}  response.Response{data=service.FundBalanceResponse}
// @Failure      404          {object}  response.Response
// @Router       /petty-cash-funds/{custodianId} [get]
func (h *PettyCashHandler) Balance(c *gin.Context) {
	custodianID, ok := pathID(c, "custodianId")
	if !ok {
		return
	}
	params := pagination.Parse(c)

	balance, err := h.pettyCashService.Balance(c.Request.Context(), custodianID, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("", balance))
}

// Replenish tops up a custodian's fund
// @Summary      Replenish petty cash fund
// @Tags         petty-cash
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        custodianId  path      string                        true  "Custodian user ID"
// @Param        payload      body      service.ReplenishFundRequest  true  "Amount"
// @Success      200          {object}  response.Response{data=service.FundResponse}
// @Router       /petty-cash-funds/{custodianId}/replenish [post]
func (h *PettyCashHandler) Replenish(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	custodianID, ok := pathID(c, "custodianId")
	if !ok {
		return
	}
	var req service.ReplenishFundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	fund, err := h.pettyCashService.Replenish(c.Request.Context(), p, custodianID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("Fund replenished", fund))
}
