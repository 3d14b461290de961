package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

func init() {
	// report fields by their JSON names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// bindAndValidate binds the JSON body and runs the validator tags. It writes
// the 400 response itself and returns false on failure.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid JSON body"))
		return false
	}
	return validateStruct(c, req)
}

func validateStruct(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(validationMessage(err)))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return "Invalid request"
	}
	msgs := make([]string, 0, len(ves))
	for _, fe := range ves {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(msgs, "; ")
}

// respondError maps err onto the envelope. 5xx causes are logged with the
// request id and replaced by a generic message.
func respondError(c *gin.Context, err error) {
	status := apierror.StatusOf(err)
	if status >= http.StatusInternalServerError {
		ev := log.Error().
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Err(err)
		var ae *apierror.Error
		if errors.As(err, &ae) && ae.Kind == apierror.KindPartialImport {
			ev = ev.Int("committed_batches", ae.CommittedBatches)
		}
		ev.Msg("request failed")
	}
	c.JSON(status, apierror.New(apierror.PublicMessage(err)))
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, apierror.Response{Success: true, Data: data})
}

func respondList(c *gin.Context, data interface{}, n int) {
	c.JSON(http.StatusOK, apierror.Response{Success: true, Data: data, Count: &n})
}

func respondMessage(c *gin.Context, status int, msg string, data interface{}) {
	c.JSON(status, apierror.Response{Success: true, Data: data, Message: msg})
}

// pathID parses the :id param. An unparseable id names nothing, so it is a
// 404 rather than a validation error.
func pathID(c *gin.Context, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierror.NotFound(resource))
		return uuid.Nil, false
	}
	return id, true
}
