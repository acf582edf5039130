package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"braintree-checkout-api/apperrors"
	"braintree-checkout-api/logger"
	"braintree-checkout-api/models"
	"braintree-checkout-api/services/auth"
)

type contextKey string

const AdminContextKey contextKey = "admin"

// TokenValidator checks an admin access token.
type TokenValidator interface {
	ValidateToken(token string) (*models.AdminUser, error)
}

// AdminAuth requires a valid bearer access token carrying the admin claim.
func AdminAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn(r.Context(), "Missing Authorization header", zap.String("ip", clientIP(r)))
				apperrors.HandleError(w, apperrors.New(http.StatusUnauthorized, "Missing authorization header", nil))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				logger.Warn(r.Context(), "Invalid Authorization header format", zap.String("ip", clientIP(r)))
				apperrors.HandleError(w, apperrors.New(http.StatusUnauthorized, "Invalid authorization header format", nil))
				return
			}

			user, err := validator.ValidateToken(parts[1])
			if err != nil {
				logger.Warn(r.Context(), "Token validation failed", zap.String("ip", clientIP(r)), zap.Error(err))

				message := "Authentication failed"
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					message = "Token expired"
				case errors.Is(err, auth.ErrInvalidToken):
					message = "Invalid token"
				}
				apperrors.HandleError(w, apperrors.New(http.StatusUnauthorized, message, err))
				return
			}

			if !user.IsAdmin {
				logger.Warn(r.Context(), "Non-admin token used on admin endpoint", zap.String("username", user.Username))
				apperrors.HandleError(w, apperrors.New(http.StatusForbidden, "This endpoint requires an admin account", nil))
				return
			}

			ctx := context.WithValue(r.Context(), AdminContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminFromContext returns the admin set by AdminAuth, or nil.
func GetAdminFromContext(ctx context.Context) *models.AdminUser {
	user, ok := ctx.Value(AdminContextKey).(*models.AdminUser)
	if !ok {
		return nil
	}
	return user
}
