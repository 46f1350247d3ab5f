package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

// canvasActionPerms narrows the transition route per action; the workflow table still checks the role
var canvasActionPerms = map[string]string{
	"submit":  service.PermCanvasWrite,
	"review":  service.PermCanvasApprove,
	"approve": service.PermCanvasApprove,
	"reject":  service.PermCanvasApprove,
}

type CanvasHandler struct {
	canvasService service.CanvasService
}

func NewCanvasHandler(canvasService service.CanvasService) *CanvasHandler {
	return &CanvasHandler{canvasService: canvasService}
}

func (h *CanvasHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Auth) {
	canvases := router.Group("/canvases")
	{
		canvases.GET("", auth.RequirePermission(service.PermCanvasRead), h.ListCanvases)
		canvases.POST("", auth.RequirePermission(service.PermCanvasWrite), h.CreateCanvas)
		canvases.GET("/:id", auth.RequirePermission(service.PermCanvasRead), h.GetCanvas)
		canvases.DELETE("/:id", auth.RequirePermission(service.PermCanvasWrite), h.DeleteCanvas)
		canvases.POST("/:id/transitions", auth.RequirePermission(service.PermCanvasRead),
			auth.RequireActionPermission(canvasActionPerms), h.TransitionCanvas)
		canvases.GET("/:id/approvals", auth.RequirePermission(service.PermCanvasRead), h.GetApprovals)

		canvases.POST("/:id/files", auth.RequirePermission(service.PermCanvasWrite), h.UploadFile)
		canvases.GET("/:id/files/:fileId", auth.RequirePermission(service.PermCanvasRead), h.DownloadFile)
		canvases.DELETE("/:id/files/:fileId", auth.RequirePermission(service.PermCanvasWrite), h.DeleteFile)
	}
}

// ListCanvases returns canvasses
// @Summary      List canvasses
// @Tags         canvases
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Status filter"
// @Param        search  query     string  false  "Title"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.CanvasResponse}
// @Router       /canvases [get]
func (h *CanvasHandler) ListCanvases(c *gin.Context) {
	params := pagination.Parse(c)

	canvases, total, err := h.canvasService.ListCanvases(c.Request.Context(), service.CanvasFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(canvases, pagination.NewMeta(params, total)))
}

// CreateCanvas opens a draft canvass
// @Summary      Create canvass
// @Tags         canvases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateCanvasRequest  true  "Canvass"
// @Success      201      {object}  response.Response{data=service.CanvasResponse}
// @Router       /canvases [post]
func (h *CanvasHandler) CreateCanvas(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.CreateCanvasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	canvas, err := h.canvasService.CreateCanvas(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success("Canvass created", canvas))
}

// GetCanvas returns one canvass with its quotations and the selected one
// @Summary      Get canvass
// @Tags         canvases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Canvass ID"
// @Success      200  {object}  response.Response{data=service.CanvasResponse}
// @Failure      404  {object}  response.Response
// @Router       /canvases/{id} [get]
func (h *CanvasHandler) GetCanvas(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	canvas, err := h.canvasService.GetCanvas(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("", canvas))
}

// DeleteCanvas removes a draft canvass and its stored quotations
// @Summary      Delete canvass
// @Tags         canvases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Canvass ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /canvases/{id} [delete]
func (h *CanvasHandler) DeleteCanvas(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.canvasService.DeleteCanvas(c.Request.Context(), p, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("Canvass deleted", nil))
}

// TransitionCanvas submits, reviews, approves or rejects a canvass. Approval needs selected_file_id.
// @Summary      Transition canvass
// @Tags         canvases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Canvass ID"
// @Param        payload  body      service.TransitionRequest  true  "Action"
// @Success      200      {object}  response.Response{data=service.TransitionResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /canvases/{id}/transitions [post]
func (h *CanvasHandler) TransitionCanvas(c *gin.Context) {
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

	res, err := h.canvasService.TransitionCanvas(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("Canvass "+res.Status, res))
}

// GetApprovals returns the latest decision of each reviewing role
// @Summary      Canvass decisions
// @Tags         canvases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Canvass ID"
// @Success      200  {object}  response.Response{data=[]service.CanvasApprovalResponse}
// @Router       /canvases/{id}/approvals [get]
func (h *CanvasHandler) GetApprovals(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	approvals, err := h.canvasService.GetApprovals(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("", approvals))
}

// UploadFile attaches a supplier quotation to a draft canvass
// @Summary      Upload quotation
// @Tags         canvases
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id           path      string  true   "Canvass ID"
// @Param        file         formData  file    true   "Quotation"
// @Param        supplier_id  formData  string  false  "Supplier ID"
// @Success      201          {object}  response.Response{data=service.CanvasFileResponse}
// @Failure      409          {object}  response.Response
// @Router       /canvases/{id}/files [post]
func (h *CanvasHandler) UploadFile(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	upload, closer, ok := formUpload(c)
	if !ok {
		return
	}
	defer closer.Close()

	file, err := h.canvasService.UploadFile(c.Request.Context(), p, id, c.PostForm("supplier_id"), upload)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success("Quotation uploaded", file))
}

// DownloadFile streams a stored quotation
// @Summary      Download quotation
// @Tags         canvases
// @Security     BearerAuth
// @Produce      octet-stream
// @Param        id      path  string  true  "Canvass ID"
// @Param        fileId  path  string  true  "File ID"
// @Success      200
// @Failure      404     {object}  response.Response
// @Router       /canvases/{id}/files/{fileId} [get]
func (h *CanvasHandler) DownloadFile(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	fileID, ok := pathID(c, "fileId")
	if !ok {
		return
	}

	body, meta, err := h.canvasService.DownloadFile(c.Request.Context(), id, fileID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer body.Close()

	sendFile(c, body, meta.OriginalName, meta.ContentType, meta.Size)
}

// DeleteFile removes a quotation from a draft canvass
// @Summary      Delete quotation
// @Tags         canvases
// @Security     BearerAuth
// @Produce      json
// @Param        id      path      string  true  "Canvass ID"
// @Param        fileId  path      string  true  "File ID"
// @Success      200     {object}  response.Response
// @Router       /canvases/{id}/files/{fileId} [delete]
func (h *CanvasHandler) DeleteFile(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	fileID, ok := pathID(c, "fileId")
	if !ok {
		return
	}

	if err := h.canvasService.DeleteFile(c.Request.Context(), p, id, fileID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success("Quotation deleted", nil))
}
