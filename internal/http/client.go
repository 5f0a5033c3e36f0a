// Package http builds the HTTP clients shared by the gateway client and
// the storage uploaders, and provides retry helpers for blob transfers.
package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"
	"strings"

	"golang.org/x/net/http2"

	"github.com/rescale/record-files/internal/config"
	"github.com/rescale/record-files/internal/constants"
)

// CreateTransferClient returns a client tuned for file uploads and
// downloads. It starts from ConfigureHTTPClient so S3 and Azure traffic
// goes through the same proxy as gateway calls. A nil cfg uses the proxy
// environment variables.
//
// The client has no overall timeout; callers bound transfers with a context.
// DISABLE_HTTP2=true forces HTTP/1.1. HTTP/2 is also disabled behind a
// proxy unless FORCE_HTTP2=true.
func CreateTransferClient(cfg *config.Config) (*nethttp.Client, error) {
	baseClient := &nethttp.Client{Transport: newTransport()}
	if cfg != nil {
		var err error
		baseClient, err = ConfigureHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
	} else {
		baseClient.Transport.(*nethttp.Transport).Proxy = nethttp.ProxyFromEnvironment
	}

	// NTLM wraps the transport, leave it untouched
	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		baseClient.Timeout = 0
		return baseClient, nil
	}

	tr.MaxIdleConns = 512
	tr.MaxIdleConnsPerHost = 100
	tr.MaxConnsPerHost = 100
	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" || (proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true") {
		disableHTTP2(tr)
	}

	baseClient.Transport = tr
	baseClient.Timeout = 0
	return baseClient, nil
}

func disableHTTP2(tr *nethttp.Transport) {
	tr.ForceAttemptHTTP2 = false
	tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
}

// proxyActive trusts the configured mode and only consults the environment
// for system mode or a nil config.
func proxyActive(cfg *config.Config) bool {
	if cfg != nil {
		switch strings.ToLower(cfg.ProxyMode) {
		case ProxyModeNone, "":
			return false
		case ProxyModeSystem:
		default:
			return true
		}
	}
	return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
		os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
}

// NewDownloadClient returns a transfer client bounded by the transfer timeout.
func NewDownloadClient(cfg *config.Config) (*nethttp.Client, error) {
	client, err := CreateTransferClient(cfg)
	if err != nil {
		return nil, err
	}
	client.Timeout = constants.TransferTimeout
	return client, nil
}
