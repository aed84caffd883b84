package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casualjim/roost/event"
	"github.com/fogfish/opts"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Invoker performs the actual service call of an APICalling event.
type Invoker interface {
	Invoke(ctx context.Context, endpoint string, payload []byte) (any, error)
}

type InvokerFunc func(ctx context.Context, endpoint string, payload []byte) (any, error)

func (f InvokerFunc) Invoke(ctx context.Context, endpoint string, payload []byte) (any, error) {
	return f(ctx, endpoint, payload)
}

type callSettings struct {
	timeout        time.Duration
	requiresTokens bool
	requiredTokens int
	attempts       int
	backoff        time.Duration
}

type CallOption = opts.Option[callSettings]

var (
	// Timeout bounds every attempt of the call together.
	Timeout = opts.ForName[callSettings, time.Duration]("timeout")
	// RequiresTokens turns token accounting for the call on or off. It is on
	// by default; calls without it only spend a request.
	RequiresTokens = opts.ForName[callSettings, bool]("requiresTokens")
)

// RequiredTokens fixes the token cost instead of estimating it.
func RequiredTokens(n int) CallOption {
	return opts.Type[callSettings](func(s *callSettings) error {
		if n < 0 {
			return fmt.Errorf("required tokens can't be negative, got %d", n)
		}
		s.requiredTokens = n
		return nil
	})
}

// Retry makes up to attempts tries, sleeping backoff, 2*backoff, 4*backoff...
// between them.
func Retry(attempts int, backoff time.Duration) CallOption {
	return opts.Type[callSettings](func(s *callSettings) error {
		if attempts < 1 {
			return fmt.Errorf("attempts must be at least 1, got %d", attempts)
		}
		s.attempts = attempts
		s.backoff = backoff
		return nil
	})
}

// APICalling is an event that sends a JSON payload to a service endpoint.
type APICalling struct {
	*event.Base
	endpoint string
	payload  []byte
	invoker  Invoker
	s        callSettings
}

// NewAPICalling creates a call of endpoint with payload. A payload given as
// []byte or json.RawMessage must already be JSON; anything else is marshalled.
func NewAPICalling(endpoint string, payload any, invoker Invoker, options ...CallOption) (*APICalling, error) {
	if invoker == nil {
		return nil, errors.New("invoker cannot be nil")
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	s := callSettings{requiresTokens: true, requiredTokens: -1, attempts: 1}
	if err := opts.Apply(&s, options); err != nil {
		return nil, err
	}
	return &APICalling{
		Base:     event.NewBase(),
		endpoint: endpoint,
		payload:  raw,
		invoker:  invoker,
		s:        s,
	}, nil
}

func encodePayload(payload any) ([]byte, error) {
	var raw []byte
	switch p := payload.(type) {
	case nil:
		raw = []byte(`{}`)
	case []byte:
		raw = p
	case json.RawMessage:
		raw = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		raw = b
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid json payload: %s", raw)
	}
	return raw, nil
}

func (c *APICalling) Kind() string { return "api_calling" }

func (c *APICalling) Endpoint() string { return c.endpoint }

// Payload returns the JSON payload.
func (c *APICalling) Payload() []byte { return c.payload }

// Request exposes the endpoint and the decoded payload.
func (c *APICalling) Request() map[string]any {
	return map[string]any{
		"endpoint": c.endpoint,
		"payload":  gjson.ParseBytes(c.payload).Value(),
	}
}

func (c *APICalling) RequiredTokens(calc TokenCalculator) (int, error) {
	switch {
	case !c.s.requiresTokens:
		return 0, nil
	case c.s.requiredTokens >= 0:
		return c.s.requiredTokens, nil
	case calc == nil:
		return 0, fmt.Errorf("%w: no token calculator", ErrUnknownCost)
	default:
		return calc.Estimate(c.endpoint, c.payload)
	}
}

func (c *APICalling) Invoke(ctx context.Context) {
	if !c.Start() {
		return
	}
	began := time.Now()

	if c.s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.s.timeout)
		defer cancel()
	}

	var (
		resp any
		err  error
	)
	for attempt := range c.s.attempts {
		if attempt > 0 {
			wait := c.s.backoff << (attempt - 1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				err = errors.Join(err, context.Cause(ctx))
				c.Finish(nil, err, time.Since(began))
				return
			}
		}
		resp, err = c.invoker.Invoke(ctx, c.endpoint, c.payload)
		if err == nil || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		err = fmt.Errorf("call to %s failed: %w", c.endpoint, err)
	}
	c.Finish(resp, err, time.Since(began))
}

// MarshalJSON adds the endpoint and payload to the base event document.
func (c *APICalling) MarshalJSON() ([]byte, error) {
	result, err := c.Base.MarshalJSON()
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "endpoint", c.endpoint)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(result, "payload", c.payload)
}
