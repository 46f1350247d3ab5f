package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	requestService service.RequestService
}

func NewRequestHandler(requestService service.RequestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Auth) {
	requests := router.Group("/requests")
	{
		requests.GET("", auth.RequirePermission(service.PermRequestsRead), h.ListRequests)
		requests.POST("", auth.RequirePermission(service.PermRequestsWrite), h.CreateRequest)
		requests.GET("/:id", auth.RequirePermission(service.PermRequestsRead), h.GetRequest)
		requests.PUT("/:id", auth.RequirePermission(service.PermRequestsWrite), h.UpdateRequest)
		requests.DELETE("/:id", auth.RequirePermission(service.PermRequestsWrite), h.DeleteRequest)
		requests.POST("/:id/transitions", auth.RequirePermission(service.PermRequestsApprove), h.TransitionRequest)
		requests.GET("/:id/approvals", auth.RequirePermission(service.PermRequestsRead), h.GetApprovals)
		requests.PUT("/:id/details/:detailId/tagging", auth.RequirePermission(service.PermRequestsWrite), h.TagDetail)
	}
}

// ListRequests returns requests visible to the caller. Staff only see their own.
// @Summary      List requests
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Status filter"
// @Param        search  query     string  false  "Request number or purpose"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.RequestResponse}
// @Router       /requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)

	requests, total, err := h.requestService.ListRequests(c.Request.Context(), p, service.RequestFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(requests, pagination.NewMeta(params, total)))
}

// CreateRequest files a new request with its item lines
// @Summary      Create request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRequestRequest  true  "Request"
// @Success      201      {object}  response.Response{data=service.RequestResponse}
// @Failure      422      {object}  response.Response
// @Router       /requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	created, err := h.requestService.CreateRequest(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success("Request created", created))
}

// GetRequest returns one request with its lines
// @Summary      Get request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	req, err := h.requestService.GetRequest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("", req))
}

// UpdateRequest edits a pending request
// @Summary      Update request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Request ID"
// @Param        payload  body      service.UpdateRequestRequest  true  "Changes"
// @Success      200      {object}  response.Response{data=service.RequestResponse}
// @Failure      409      {object}  response.Response
// @Router       /requests/{id} [put]
func (h *RequestHandler) UpdateRequest(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updated, err := h.requestService.UpdateRequest(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("Request updated", updated))
}

// DeleteRequest removes a pending request
// @Summary      Delete request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /requests/{id} [delete]
func (h *RequestHandler) DeleteRequest(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.requestService.DeleteRequest(c.Request.Context(), p, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("Request deleted", nil))
}

// TransitionRequest applies an approve, reject or custody action
// @Summary      Transition request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Request ID"
// @Param        payload  body      service.TransitionRequest  true  "Action"
// @Success      200      {object}  response.Response{data=service.TransitionResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /requests/{id}/transitions [post]
func (h *RequestHandler) TransitionRequest(c *gin.Context) {
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

	res, err := h.requestService.TransitionRequest(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("Request "+res.Status, res))
}

// TagDetail marks a line as needing a canvass or not
// @Summary      Tag request line
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id        path      string                    true  "Request ID"
// @Param        detailId  path      string                    true  "Line ID"
// @Param        payload   body      service.TagDetailRequest  true  "Tagging"
// @Success      200       {object}  response.Response{data=service.RequestDetailResponse}
// @Router       /requests/{id}/details/{detailId}/tagging [put]
func (h *RequestHandler) TagDetail(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detailID, ok := pathID(c, "detailId")
	if !ok {
		return
	}
	var req service.TagDetailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	detail, err := h.requestService.TagDetail(c.Request.Context(), p, id, detailID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("Line tagged", detail))
}

// GetApprovals returns the request's approval history, oldest first
// @Summary      Request approval history
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=[]service.ApprovalResponse}
// @Router       /requests/{id}/approvals [get]
func (h *RequestHandler) GetApprovals(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	history, err := h.requestService.GetApprovals(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("", history))
}
