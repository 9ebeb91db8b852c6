package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsmarket-backend/api/responses"
	pkgAuth "github.com/angelmondragon/partsmarket-backend/pkg/auth"
	"github.com/angelmondragon/partsmarket-backend/pkg/config"
	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/partsmarket-backend/pkg/errors"
	"github.com/angelmondragon/partsmarket-backend/pkg/logger"
)

const revokedTokenMessage = "token revoked, sign in again"

// UserLoader resolves the token subject to its current record.
type UserLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Auth validates a bearer token, loads the user and rejects banned users and
// tokens minted for an older auth version.
func Auth(cfg config.JWTConfig, users UserLoader, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			user, err := users.Get(r.Context(), claims.UserID)
			if err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token"))
					return
				}
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if user.Banned {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "account suspended"))
				return
			}
			if claims.AuthVersion != user.AuthVersion {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, revokedTokenMessage))
				return
			}

			ctx := WithUser(r.Context(), user)
			if logg != nil {
				ctx = logg.WithUserID(ctx, user.ID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
