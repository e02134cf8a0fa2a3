package testutil

import (
	"net/http"

	"caseview/pkg/requestcontext"
)

// WithOperator stamps the request context the way the auth middleware
// would for an authenticated operator.
func WithOperator(req *http.Request, operatorID int64, email, role string) *http.Request {
	ctx := req.Context()
	ctx = requestcontext.WithOperatorID(ctx, operatorID)
	if email != "" {
		ctx = requestcontext.WithOperatorEmail(ctx, email)
	}
	if role != "" {
		ctx = requestcontext.WithOperatorRole(ctx, role)
	}
	return req.WithContext(ctx)
}

// WithRequestID adds a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
