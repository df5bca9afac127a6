package httputil

import "github.com/gin-gonic/gin"

// IHttpHandler mounts one resource under the public and admin groups.
type IHttpHandler interface {
	Root() string
	SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup)
}
