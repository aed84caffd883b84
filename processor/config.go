package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casualjim/roost/event"
	"github.com/fogfish/opts"
)

// ErrInvalidConfig is returned by New when the configuration can't work.
var ErrInvalidConfig = errors.New("invalid processor config")

// Config bounds how many events a processor dispatches per refresh period.
type Config struct {
	// QueueCapacity is the number of dispatches allowed between two capacity
	// refreshes. It must be at least 1.
	QueueCapacity int
	// CapacityRefreshTime is both the refresh period of the capacity and the
	// pause between two passes of Execute. It must be positive.
	CapacityRefreshTime time.Duration
}

func (c Config) Validate() error {
	var errs []error
	if c.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("%w: queue capacity must be at least 1, got %d", ErrInvalidConfig, c.QueueCapacity))
	}
	if c.CapacityRefreshTime <= 0 {
		errs = append(errs, fmt.Errorf("%w: capacity refresh time must be positive, got %s", ErrInvalidConfig, c.CapacityRefreshTime))
	}
	return errors.Join(errs...)
}

// PermissionFunc decides whether an event may be dispatched now. Denied
// events stay queued for a later pass.
type PermissionFunc func(context.Context, event.Event) bool

// Observer is told about every event that reached a terminal status after
// being dispatched by the processor.
type Observer interface {
	Observe(context.Context, event.Event)
}

type ObserverFunc func(context.Context, event.Event)

func (f ObserverFunc) Observe(ctx context.Context, ev event.Event) { f(ctx, ev) }

type settings struct {
	permission PermissionFunc
	observers  []Observer
	logger     *slog.Logger
}

type Option = opts.Option[settings]

var (
	// WithPermission installs the admission check consulted before each dispatch.
	WithPermission = opts.ForName[settings, PermissionFunc]("permission")
	WithLogger     = opts.ForName[settings, *slog.Logger]("logger")
)

// WithObserver adds an observer of terminal transitions.
func WithObserver(observer Observer) Option {
	return opts.Type[settings](func(s *settings) error {
		if observer == nil {
			return errors.New("observer cannot be nil")
		}
		s.observers = append(s.observers, observer)
		return nil
	})
}
