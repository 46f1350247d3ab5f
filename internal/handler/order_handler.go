package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orderService   service.OrderService
	releaseService service.ReleaseService
}

func NewOrderHandler(orderService service.OrderService, releaseService service.ReleaseService) *OrderHandler {
	return &OrderHandler{orderService: orderService, releaseService: releaseService}
}

func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Auth) {
	orders := router.Group("/orders")
	{
		orders.GET("", auth.RequirePermission(service.PermOrdersRead), h.ListOrders)
		orders.POST("", auth.RequirePermission(service.PermOrdersWrite), h.CreateOrder)
		orders.GET("/:id", auth.RequirePermission(service.PermOrdersRead), h.GetOrder)
		orders.POST("/:id/transitions", auth.RequirePermission(service.PermOrdersWrite), h.TransitionOrder)
		orders.GET("/:id/approvals", auth.RequirePermission(service.PermOrdersRead), h.GetApprovals)

		orders.POST("/:id/releases", auth.RequirePermission(service.PermOrdersRelease), h.Release)
		orders.GET("/:id/releases", auth.RequirePermission(service.PermOrdersRead), h.ListReleases)
		orders.GET("/:id/releases/summary", auth.RequirePermission(service.PermOrdersRead), h.ReleaseSummary)
	}
}

// ListOrders returns request-to-order records
// @Summary      List orders
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Status filter"
// @Param        search  query     string  false  "Order number"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.OrderResponse}
// @Router       /orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	params := pagination.Parse(c)

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), service.OrderFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(orders, pagination.NewMeta(params, total)))
}

// CreateOrder builds an order from approved request lines or free-form lines
// @Summary      Create order
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateOrderRequest  true  "Order"
// @Success      201      {object}  response.Response{data=service.OrderResponse}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success("Order created", order))
}

// GetOrder returns one order with its lines and released quantities
// @Summary      Get order
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=service.OrderResponse}
// @Failure      404  {object}  response.Response
// @Router       /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("", order))
}

// TransitionOrder moves an order through EOD and PO approval
// @Summary      Transition order
// @Description  submit_eod and submit_po require the caller's password
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Order ID"
// @Param        payload  body      service.TransitionRequest  true  "Action"
// @Success      200      {object}  response.Response{data=service.TransitionResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /orders/{id}/transitions [post]
func (h *OrderHandler) TransitionOrder(c *gin.Context) {
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

	res, err := h.orderService.TransitionOrder(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("Order "+res.Status, res))
}

// GetApprovals returns the order's approval history
// @Summary      Order approval history
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=[]service.ApprovalResponse}
// @Router       /orders/{id}/approvals [get]
func (h *OrderHandler) GetApprovals(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	history, err := h.orderService.GetApprovals(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("", history))
}

// Release records one delivery batch against an approved order. The batch is
// all-or-nothing: any over-release rejects every line.
// @Summary      Release items
// @Tags         orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Order ID"
// @Param        payload  body      service.ReleaseBatch  true  "Release batch"
// @Success      201      {object}  response.Response{data=service.ReleaseResult}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /orders/{id}/releases [post]
func (h *OrderHandler) Release(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var batch service.ReleaseBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.releaseService.Release(c.Request.Context(), p, id, batch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success("Items released", result))
}

// ListReleases returns the release ledger of an order
// @Summary      List releases
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=[]service.ReleaseResponse}
// @Router       /orders/{id}/releases [get]
func (h *OrderHandler) ListReleases(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	releases, err := h.releaseService.ListReleases(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("", releases))
}

// ReleaseSummary returns ordered, released and remaining quantities per line
// @Summary      Release summary
// @Tags         orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=service.ReleaseSummaryResponse}
// @Router       /orders/{id}/releases/summary [get]
func (h *OrderHandler) ReleaseSummary(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	summary, err := h.releaseService.ReleaseSummary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("", summary))
}
