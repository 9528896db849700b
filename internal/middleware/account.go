package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

type accountResolver interface {
	ResolveClaims(ctx context.Context, claims *models.JWTClaims) (*models.JWTClaims, error)
}

// CurrentAccount swaps the token claims for ones built from the stored
// account, so demotions and deletions apply before the token expires. It must
// run after JWT.
func CurrentAccount(accounts accountResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		current, err := accounts.ResolveClaims(c.Request.Context(), claims)
		if err != nil {
			response.Abort(c, err)
			return
		}
		c.Set(ContextUserKey, current)
		c.Next()
	}
}
