// Package remote performs one-shot XML-RPC calls against bookkeeping and
// conditions services. Responses are returned raw.
package remote

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/specialistvlad/procgrid/internal/ctxlog"
	"resty.dev/v3"
)

// DefaultTimeout bounds a call.
const DefaultTimeout = 30 * time.Second

type methodCall struct {
	XMLName    xml.Name `xml:"methodCall"`
	MethodName string   `xml:"methodName"`
	Params     []param  `xml:"params>param"`
}

type param struct {
	Value string `xml:"value>string"`
}

// Body encodes an XML-RPC method call with string parameters.
func Body(method string, params ...string) ([]byte, error) {
	if method == "" {
		return nil, fmt.Errorf("method name is required")
	}
	call := methodCall{MethodName: method}
	for _, p := range params {
		call.Params = append(call.Params, param{Value: p})
	}
	out, err := xml.Marshal(call)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// Client issues calls. The zero value is not usable; use New.
type Client struct {
	http *resty.Client
}

// New creates a client with the given timeout, or DefaultTimeout when zero.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{http: resty.New().SetTimeout(timeout)}
}

// Close releases the client's connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// Call posts one method call to endpoint and returns the response body as
// is. There is no retry and no parsing of the response.
func (c *Client) Call(ctx context.Context, endpoint, method string, params ...string) (string, error) {
	logger := ctxlog.FromContext(ctx).With("endpoint", endpoint, "method", method)

	body, err := Body(method, params...)
	if err != nil {
		return "", err
	}

	logger.Debug("Sending remote call.", "params", len(params))
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/xml").
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return "", fmt.Errorf("remote call %s failed: %w", method, err)
	}
	if res.IsError() {
		return "", fmt.Errorf("remote call %s failed: %s", method, res.Status())
	}
	logger.Debug("Remote call answered.", "status", res.StatusCode())
	return res.String(), nil
}

// Call is a one-off call with a client using DefaultTimeout.
func Call(ctx context.Context, endpoint, method string, params ...string) (string, error) {
	c := New(0)
	defer c.Close()
	return c.Call(ctx, endpoint, method, params...)
}
