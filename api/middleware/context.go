package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxUser   contextKey = "user"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// UserFromContext returns the user loaded by Auth for this request.
func UserFromContext(ctx context.Context) *models.User {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxUser).(*models.User); ok {
		return v
	}
	return nil
}

// AuthenticatedUserID parses the request user id; ok is false outside Auth.
func AuthenticatedUserID(ctx context.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// WithUser injects the authenticated user into the context.
func WithUser(ctx context.Context, user *models.User) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if user == nil {
		return ctx
	}
	if info := accessLogFrom(ctx); info != nil {
		info.userID = user.ID.String()
	}
	ctx = context.WithValue(ctx, ctxUserID, user.ID.String())
	return context.WithValue(ctx, ctxUser, user)
}
