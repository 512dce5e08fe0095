package auth

import (
	"context"
	"fmt"
)

type contextKey string

const userIDKey contextKey = "userID"

// ContextWithUserID returns a new context that carries the acting user.
func ContextWithUserID(ctx context.Context, id int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext retrieves the acting user from the context, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	value := ctx.Value(userIDKey)
	if value == nil {
		return 0, false
	}
	id, ok := value.(int64)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}

// RequireUserID returns the acting user or an error suitable for a 401.
func RequireUserID(ctx context.Context) (int64, error) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return 0, fmt.Errorf("an acting user is required")
	}
	return id, nil
}
