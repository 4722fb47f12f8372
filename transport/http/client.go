// Package http binds the transport-agnostic client.Transport and the
// server's endpoint handlers to actual HTTP, POSTing a signed JSON
// envelope per request and decoding a JSON envelope back.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hyperborea-net/hyperborea/client"
	"github.com/hyperborea-net/hyperborea/envelope"
	"github.com/hyperborea-net/hyperborea/protoerr"
)

// RequestIDHeader carries a correlation ID generated client side by each
// Do call. A retry by client.Client is a new Do call, so every attempt
// carries its own ID.
const RequestIDHeader = "X-Hyperborea-Request-Id"

// endpointPaths maps each client.Endpoint to the fixed URL path Server
// binds it to.
var endpointPaths = map[client.Endpoint]string{
	client.EndpointInfo:     "/api/v1/info",
	client.EndpointClients:  "/api/v1/clients",
	client.EndpointServers:  "/api/v1/servers",
	client.EndpointConnect:  "/api/v1/connect",
	client.EndpointLookup:   "/api/v1/lookup",
	client.EndpointAnnounce: "/api/v1/announce",
	client.EndpointSend:     "/api/v1/send",
	client.EndpointPoll:     "/api/v1/poll",
}

// Transport implements client.Transport over HTTP/REST, POSTing the
// signed request envelope as JSON and decoding the response envelope
// from the body.
type Transport struct {
	Scheme     string // "http" or "https"; defaults to "https"
	httpClient *http.Client
}

// NewTransport creates an HTTP transport with a sane default timeout.
func NewTransport() *Transport {
	return &Transport{
		Scheme:     "https",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewTransportWithClient creates an HTTP transport with a caller-supplied
// *http.Client, for custom TLS config, proxies, or timeouts.
func NewTransportWithClient(scheme string, httpClient *http.Client) *Transport {
	return &Transport{Scheme: scheme, httpClient: httpClient}
}

// Do implements client.Transport.
func (t *Transport) Do(ctx context.Context, address string, endpoint client.Endpoint, req *envelope.Request) (*envelope.Response, error) {
	path, ok := endpointPaths[endpoint]
	if !ok {
		return nil, protoerr.New(protoerr.KindTransport, fmt.Sprintf("unknown endpoint %q", endpoint))
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindSchema, "failed to encode request envelope", err)
	}

	url := t.Scheme + "://" + address + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindTransport, "failed to build HTTP request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(RequestIDHeader, uuid.NewString())

	httpClient := t.httpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindTransport, "HTTP request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, protoerr.Wrap(protoerr.KindTransport, "failed to read HTTP response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, protoerr.New(protoerr.KindTransport, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody)))
	}

	var envResp envelope.Response
	if err := json.Unmarshal(respBody, &envResp); err != nil {
		return nil, protoerr.Wrap(protoerr.KindSchema, "failed to decode response envelope", err)
	}
	return &envResp, nil
}
