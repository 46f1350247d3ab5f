package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type PurchaseOrderHandler struct {
	poService service.PurchaseOrderService
}

func NewPurchaseOrderHandler(poService service.PurchaseOrderService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{poService: poService}
}

func (h *PurchaseOrderHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Auth) {
	pos := router.Group("/purchase-orders")
	{
		pos.GET("", auth.RequirePermission(service.PermPORead), h.ListPurchaseOrders)
		pos.POST("", auth.RequirePermission(service.PermPOWrite), h.CreatePurchaseOrder)
		pos.GET("/:id", auth.RequirePermission(service.PermPORead), h.GetPurchaseOrder)
		pos.POST("/:id/transitions", auth.RequirePermission(service.PermPOWrite), h.TransitionPurchaseOrder)
		pos.GET("/:id/approvals", auth.RequirePermission(service.PermPORead), h.GetApprovals)
	}
}

// ListPurchaseOrders returns purchase orders
// @Summary      List purchase orders
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Status filter"
// @Param        search  query     string  false  "PO number or payee"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.PurchaseOrderResponse}
// @Router       /purchase-orders [get]
func (h *PurchaseOrderHandler) ListPurchaseOrders(c *gin.Context) {
	params := pagination.Parse(c)

	pos, total, err := h.poService.ListPurchaseOrders(c.Request.Context(), service.PurchaseOrderFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(pos, pagination.NewMeta(params, total)))
}

// CreatePurchaseOrder issues a draft purchase order, optionally from an approved canvass
// @Summary      Create purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePurchaseOrderRequest  true  "Purchase order"
// @Success      201      {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /purchase-orders [post]
func (h *PurchaseOrderHandler) CreatePurchaseOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.CreatePurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	po, err := h.poService.CreatePurchaseOrder(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success("Purchase order created", po))
}

// GetPurchaseOrder returns one purchase order with its lines
// @Summary      Get purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase order ID"
// @Success      200  {object}  response.Response{data=service.PurchaseOrderResponse}
// @Failure      404  {object}  response.Response
// @Router       /purchase-orders/{id} [get]
func (h *PurchaseOrderHandler) GetPurchaseOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	po, err := h.poService.GetPurchaseOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("", po))
}

// TransitionPurchaseOrder submits, approves, completes or rejects a purchase order
// @Summary      Transition purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Purchase order ID"
// @Param        payload  body      service.TransitionRequest  true  "Action"
// @Success      200      {object}  response.Response{data=service.TransitionResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /purchase-orders/{id}/transitions [post]
func (h *PurchaseOrderHandler) TransitionPurchaseOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.poService.TransitionPurchaseOrder(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("Purchase order "+res.Status, res))
}

// GetApprovals returns the purchase order's approval history
// @Summary      Purchase order approval history
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase order ID"
// @Success      200  {object}  response.Response{data=[]service.ApprovalResponse}
// @Router       /purchase-orders/{id}/approvals [get]
func (h *PurchaseOrderHandler) GetApprovals(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	history, err := h.poService.GetApprovals(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("", history))
}
