package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/arb-engine/internal/common"
)

// Response is the envelope of every API reply.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func Error(c *gin.Context, status int, err string) {
	c.AbortWithStatusJSON(status, Response{Error: err})
}

func HandleSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func HandleBadRequest(c *gin.Context, err string) {
	Error(c, http.StatusBadRequest, err)
}

func HandleNotFound(c *gin.Context, err string) {
	Error(c, http.StatusNotFound, err)
}

func HandleInternalError(c *gin.Context, err string) {
	Error(c, http.StatusInternalServerError, err)
}

// HandleError answers with the status and code err maps to.
func HandleError(c *gin.Context, err error) {
	httpErr := common.HTTPErrorFrom(err)
	c.AbortWithStatusJSON(httpErr.StatusCode, Response{Error: httpErr.Message, Code: httpErr.Code})
}
