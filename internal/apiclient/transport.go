package apiclient

import (
	"context"
	"errors"
	"net"
	"syscall"

	"mangalib/internal/apierr"
)

// transportCode classifies a failure that produced no HTTP response.
func transportCode(err error) string {
	var netErr net.Error
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apierr.CodeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return apierr.CodeTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return apierr.CodeConnRefused
	case errors.As(err, &dnsErr),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH):
		return apierr.CodeNetwork
	default:
		return apierr.CodeNetworkGeneric
	}
}
