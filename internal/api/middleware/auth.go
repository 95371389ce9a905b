package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/jobshadow-api/internal/api/handler/v1/response"
	"github.com/vietanh2810/jobshadow-api/internal/pkg/jwthelper"
)

// ContextUserID is the gin context key holding the authenticated user id.
const ContextUserID = "userID"

var errMissingToken = errors.New("missing bearer token")

type Authenticator struct {
	jwtSigningKey []byte
}

func NewAuthenticator(jwtSigningKey string) *Authenticator {
	return &Authenticator{
		jwtSigningKey: []byte(jwtSigningKey),
	}
}

func (a *Authenticator) VerifyJWT() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenStr := bearerToken(ctx)
		if tokenStr == "" {
			response.RenderErr(ctx, response.ErrUnauthorized(errMissingToken))
			return
		}

		claims, err := jwthelper.ParseToken(a.jwtSigningKey, tokenStr, ctx.Request.UserAgent())
		if err != nil {
			response.RenderErr(ctx, response.ErrUnauthorized(err))
			return
		}

		ctx.Set(ContextUserID, claims.UserID)
		ctx.Next()
	}
}

// bearerToken reads the Authorization header. Browsers cannot set headers
// on a websocket handshake, so the token query parameter is accepted too.
func bearerToken(ctx *gin.Context) string {
	header := ctx.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}

	return ctx.Query("token")
}
