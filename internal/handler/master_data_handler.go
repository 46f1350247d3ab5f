package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

// MasterDataHandler serves departments, suppliers and the chart of accounts
type MasterDataHandler struct {
	masterData service.MasterDataService
}

func NewMasterDataHandler(masterData service.MasterDataService) *MasterDataHandler {
	return &MasterDataHandler{masterData: masterData}
}

func (h *MasterDataHandler) RegisterRoutes(router *gin.RouterGroup, auth *middleware.Auth) {
	read := auth.RequirePermission(service.PermMasterDataRead)
	write := auth.RequirePermission(service.PermMasterDataWrite)

	depts := router.Group("/departments")
	{
		depts.GET("", read, h.ListDepartments)
		depts.POST("", write, h.CreateDepartment)
		depts.PUT("/:id", write, h.UpdateDepartment)
		depts.DELETE("/:id", write, h.DeleteDepartment)
	}

	suppliers := router.Group("/suppliers")
	{
		suppliers.GET("", read, h.ListSuppliers)
		suppliers.GET("/:id", read, h.GetSupplier)
		suppliers.POST("", write, h.CreateSupplier)
		suppliers.PUT("/:id", write, h.UpdateSupplier)
		suppliers.DELETE("/:id", write, h.DeleteSupplier)
	}

	accounts := router.Group("/accounts")
	{
		accounts.GET("", read, h.ListAccounts)
		accounts.POST("", write, h.CreateAccount)
		accounts.PUT("/:id", write, h.UpdateAccount)
		accounts.DELETE("/:id", write, h.DeleteAccount)
	}
}

// ListDepartments
// @Summary      List departments
// @Tags         master-data
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.DepartmentResponse}
// @Router       /departments [get]
func (h *MasterDataHandler) ListDepartments(c *gin.Context) {
	depts, err := h.masterData.ListDepartments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("", depts))
}

// CreateDepartment
// @Summary      Create department
// @Tags         master-data
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.DepartmentRequest  true  "Department"
// @Success      201      {object}  response.Response{data=service.DepartmentResponse}
// @Router       /departments [post]
func (h *MasterDataHandler) CreateDepartment(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.DepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	dept, err := h.masterData.CreateDepartment(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success("Department created", dept))
}

// UpdateDepartment
// @Summary      Update department
// @Tags         master-data
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Department ID"
// @Param        payload  body      service.DepartmentRequest  true  "Department"
// @Success      200      {object}  response.Response{data=service.DepartmentResponse}
// @Router       /departments/{id} [put]
func (h *MasterDataHandler) UpdateDepartment(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.DepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	dept, err := h.masterData.UpdateDepartment(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("Department updated", dept))
}

// DeleteDepartment
// @Summary      Delete department
// @Tags         master-data
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Department ID"
// @Success      200  {object}  response.Response
// @Router       /departments/{id} [delete]
func (h *MasterDataHandler) DeleteDepartment(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.masterData.DeleteDepartment(c.Request.Context(), p, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("Department deleted", nil))
}

// ListSuppliers
// @Summary      List suppliers
// @Tags         master-data
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Name, TIN or contact"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.SupplierResponse}
// @Router       /suppliers [get]
func (h *MasterDataHandler) ListSuppliers(c *gin.Context) {
	params := pagination.Parse(c)

	suppliers, total, err := h.masterData.ListSuppliers(c.Request.Context(), c.Query("search"), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(suppliers, pagination.NewMeta(params, total)))
}

// GetSupplier
// @Summary      Get supplier
// @Tags         master-data
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Supplier ID"
// @Success      200  {object}  response.Response{data=service.SupplierResponse}
// @Failure      404  {object}  response.Response
// @Router       /suppliers/{id} [get]
func (h *MasterDataHandler) GetSupplier(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	supplier, err := h.masterData.GetSupplier(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("", supplier))
}

// CreateSupplier
// @Summary      Create supplier
// @Tags         master-data
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SupplierRequest  true  "Supplier"
// @Success      201      {object}  response.Response{data=service.SupplierResponse}
// @Router       /suppliers [post]
func (h *MasterDataHandler) CreateSupplier(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.SupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	supplier, err := h.masterData.CreateSupplier(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success("Supplier created", supplier))
}

// UpdateSupplier
// @Summary      Update supplier
// @Tags         master-data
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Supplier ID"
// @Param        payload  body      service.SupplierRequest  true  "Supplier"
// @Success      200      {object}  response.Response{data=service.SupplierResponse}
// @Router       /suppliers/{id} [put]
func (h *MasterDataHandler) UpdateSupplier(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.SupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	supplier, err := h.masterData.UpdateSupplier(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("Supplier updated", supplier))
}

// DeleteSupplier
// @Summary      Delete supplier
// @Tags         master-data
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Supplier ID"
// @Success      200  {object}  response.Response
// @Router       /suppliers/{id} [delete]
func (h *MasterDataHandler) DeleteSupplier(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.masterData.DeleteSupplier(c.Request.Context(), p, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("Supplier deleted", nil))
}

// ListAccounts
// @Summary      List accounts
// @Tags         master-data
// @Security     BearerAuth
// @Produce      json
// @Param        category  query     string  false  "ASSET, LIABILITY or EXPENSE"
// @Success      200       {object}  response.Response{data=[]service.AccountResponse}
// @Router       /accounts [get]
func (h *MasterDataHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.masterData.ListAccounts(c.Request.Context(), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("", accounts))
}

// CreateAccount
// @Summary      Create account
// @Tags         master-data
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.AccountRequest  true  "Account"
// @Success      201      {object}  response.Response{data=service.AccountResponse}
// @Router       /accounts [post]
func (h *MasterDataHandler) CreateAccount(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	account, err := h.masterData.CreateAccount(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success("Account created", account))
}

// UpdateAccount
// @Summary      Update account
// @Tags         master-data
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Account ID"
// @Param        payload  body      service.AccountRequest  true  "Account"
// @Success      200      {object}  response.Response{data=service.AccountResponse}
// @Router       /accounts/{id} [put]
func (h *MasterDataHandler) UpdateAccount(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	account, err := h.masterData.UpdateAccount(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("Account updated", account))
}

// DeleteAccount
// @Summary      Delete account
// @Tags         master-data
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Account ID"
// @Success      200  {object}  response.Response
// @Router       /accounts/{id} [delete]
func (h *MasterDataHandler) DeleteAccount(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.masterData.DeleteAccount(c.Request.Context(), p, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success("Account deleted", nil))
}
