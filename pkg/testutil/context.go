package testutil

import (
	"net"
	"net/http"

	"github.com/tise-genene/verifyreceipt/pkg/requestcontext"
)

// WithClientIP sets the remote address and the client metadata the
// middleware would have placed in the context.
func WithClientIP(req *http.Request, ip string) *http.Request {
	req.RemoteAddr = net.JoinHostPort(ip, "40000")
	ctx := requestcontext.WithClientMetadata(req.Context(), ip, req.Header.Get("User-Agent"))
	return req.WithContext(ctx)
}
