package auth

import (
	"context"

	"groundtransfer/opsdesk/internal/common"
)

type contextKey string

var triggerClaimsKey contextKey = "trigger_claims"

// SetTriggerClaims stores the validated bearer token claims for handlers
func SetTriggerClaims(ctx context.Context, claims *common.TriggerClaims) context.Context {
	return context.WithValue(ctx, triggerClaimsKey, claims)
}

func GetTriggerClaims(ctx context.Context) *common.TriggerClaims {
	val := ctx.Value(triggerClaimsKey)
	if claims, ok := val.(*common.TriggerClaims); ok {
		return claims
	}
	return nil
}

// Caller names who triggered a request, for logs
func Caller(ctx context.Context) string {
	if claims := GetTriggerClaims(ctx); claims != nil {
		return claims.Subject
	}
	return "scheduler"
}
