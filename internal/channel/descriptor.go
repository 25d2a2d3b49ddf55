package channel

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultDialTimeout   = 10 * time.Second
	DefaultInvokeTimeout = 5 * time.Second
	DefaultReadLimit     = 64 << 10
)

// Descriptor is the connection target plus its options. It is immutable once built.
type Descriptor struct {
	endpoint      url.URL
	header        http.Header
	dialTimeout   time.Duration
	invokeTimeout time.Duration
	readLimit     int64
}

// DescriptorOption customizes a Descriptor at construction time.
type DescriptorOption func(*Descriptor)

// WithHeader adds a header sent on the upgrade request.
func WithHeader(key, value string) DescriptorOption {
	return func(d *Descriptor) {
		d.header.Add(key, value)
	}
}

// WithDialTimeout bounds connection establishment.
func WithDialTimeout(timeout time.Duration) DescriptorOption {
	return func(d *Descriptor) {
		if timeout > 0 {
			d.dialTimeout = timeout
		}
	}
}

// WithInvokeTimeout bounds a single invocation round trip.
func WithInvokeTimeout(timeout time.Duration) DescriptorOption {
	return func(d *Descriptor) {
		if timeout > 0 {
			d.invokeTimeout = timeout
		}
	}
}

// WithReadLimit caps the size of a single inbound frame.
func WithReadLimit(limit int64) DescriptorOption {
	return func(d *Descriptor) {
		if limit > 0 {
			d.readLimit = limit
		}
	}
}

// NewDescriptor validates endpoint and builds a Descriptor.
func NewDescriptor(endpoint string, opts ...DescriptorOption) (Descriptor, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return Descriptor{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return Descriptor{}, fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}

	d := Descriptor{
		endpoint:      *u,
		header:        make(http.Header),
		dialTimeout:   DefaultDialTimeout,
		invokeTimeout: DefaultInvokeTimeout,
		readLimit:     DefaultReadLimit,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d, nil
}

// Endpoint returns the endpoint address.
func (d Descriptor) Endpoint() string {
	return d.endpoint.String()
}

// Header returns a copy of the upgrade request headers.
func (d Descriptor) Header() http.Header {
	return d.header.Clone()
}

func (d Descriptor) DialTimeout() time.Duration   { return d.dialTimeout }
func (d Descriptor) InvokeTimeout() time.Duration { return d.invokeTimeout }
func (d Descriptor) ReadLimit() int64             { return d.readLimit }
