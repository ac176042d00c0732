package httputil

import (
	"net"
	"net/http"
	"time"
)

// NewClient builds an HTTP client with separate connect and total timeouts.
// The connect timeout never exceeds the total.
func NewClient(connect, total time.Duration) *http.Client {
	if total <= 0 {
		total = 60 * time.Second
	}
	if connect <= 0 || connect > total {
		connect = total
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connect,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connect
	return &http.Client{
		Timeout:   total,
		Transport: transport,
	}
}
