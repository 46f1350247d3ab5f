package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"procurement/internal/logger"
	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/service"
	"procurement/internal/workflow"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags used by the request DTOs
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		// report json names so field errors match the payload
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
			d, err := decimal.NewFromString(fl.Field().String())
			return err == nil && !d.IsNegative()
		})
		_ = v.RegisterValidation("tagging", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case model.TaggingNoCanvas, model.TaggingWithCanvas:
				return true
			}
			return false
		})
	})
}

// respondError maps a service error onto a status code and envelope
func respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	var reauth *service.ReauthError
	var qerr *workflow.QuantityConflictError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, response.Error("Validation failed", verr.Fields))
	case errors.As(err, &reauth):
		c.JSON(http.StatusUnprocessableEntity, response.Error(err.Error(), map[string]string{reauth.Field: "is incorrect"}))
	case errors.As(err, &qerr):
		c.JSON(http.StatusUnprocessableEntity, response.Error(err.Error(), gin.H{
			"detail_id": qerr.DetailID,
			"remaining": qerr.Remaining,
			"requested": qerr.Requested,
		}))
	case errors.Is(err, workflow.ErrInvalidLine):
		c.JSON(http.StatusUnprocessableEntity, response.Error(err.Error(), nil))
	case errors.Is(err, service.ErrInsufficientFund):
		c.JSON(http.StatusUnprocessableEntity, response.Error(err.Error(), nil))
	case errors.Is(err, service.ErrRoleNotAllowed), errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, response.Error(err.Error(), nil))
	case errors.Is(err, service.ErrStateConflict):
		c.JSON(http.StatusConflict, response.Error(err.Error(), nil))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, response.Error(err.Error(), nil))
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, response.Error(err.Error(), nil))
	default:
		logger.FromGin(c).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.Error("Internal server error", nil))
	}
}

// bindError reports a malformed payload
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldName(fe)] = "failed on '" + fe.Tag() + "'"
		}
		c.JSON(http.StatusUnprocessableEntity, response.Error("Validation failed", fields))
		return
	}
	c.JSON(http.StatusBadRequest, response.Error("Invalid request payload: "+err.Error(), nil))
}

// fieldName drops the struct name: CreateVoucherRequest.details[0].amount -> details[0].amount
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// principal reads the actor set by the auth middleware
func principal(c *gin.Context) (service.Principal, bool) {
	id, err := uuid.Parse(c.GetString(middleware.ContextUserID))
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error("User ID not found in context", nil))
		return service.Principal{}, false
	}
	return service.Principal{UserID: id, Role: c.GetString(middleware.ContextUserRole)}, true
}

// pathID parses a uuid path parameter
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error("Invalid "+name, nil))
		return uuid.Nil, false
	}
	return id, true
}
