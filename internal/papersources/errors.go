package papersources

import (
	"context"
	"errors"
	"net"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// Error type labels used in metrics and logs.
const (
	ErrorTypeTimeout     = "timeout"
	ErrorTypeCanceled    = "canceled"
	ErrorTypeNotFound    = "not_found"
	ErrorTypeRateLimited = "rate_limited"
	ErrorTypeAPI         = "api_error"
	ErrorTypeDecode      = "decode"
	ErrorTypeNoMatch     = "no_match"
	ErrorTypeUnsupported = "unsupported"
	ErrorTypeOther       = "other"
)

// ErrorType classifies a collaborator error into a low-cardinality label.
func ErrorType(err error) string {
	if err == nil {
		return ""
	}

	var netErr net.Error
	var apiErr *domain.ExternalAPIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrorTypeTimeout
	case errors.Is(err, context.Canceled):
		return ErrorTypeCanceled
	case errors.Is(err, domain.ErrRateLimited):
		return ErrorTypeRateLimited
	case errors.Is(err, domain.ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, domain.ErrMalformedResponse):
		return ErrorTypeDecode
	case errors.Is(err, domain.ErrNoMatch):
		return ErrorTypeNoMatch
	case errors.Is(err, domain.ErrUnsupportedPublisher):
		return ErrorTypeUnsupported
	case errors.As(err, &apiErr):
		return ErrorTypeAPI
	default:
		return ErrorTypeOther
	}
}
