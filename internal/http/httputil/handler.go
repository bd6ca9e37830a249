package httputil

import "github.com/gin-gonic/gin"

// IHttpHandler is one mounted API surface (quotes, swaps, trade history,
// admin prices). Root names the path segment under the versioned prefix;
// SetRoutes wires the handler's endpoints into the public, wallet-signed
// and admin groups. Handlers ignore the groups they have no routes for.
type IHttpHandler interface {
	Root() string
	SetRoutes(pub, signed, admin *gin.RouterGroup)
}
