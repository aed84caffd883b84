package ratelimit

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casualjim/roost/processor"
	"github.com/fogfish/opts"
)

var (
	// ErrInvalidConfig is returned when a limiter can't be built from its config.
	ErrInvalidConfig = errors.New("invalid rate limit config")
	// ErrUnknownCost is returned by calculators that don't recognize a payload.
	ErrUnknownCost = errors.New("unknown token cost")
)

// UnknownCostPolicy decides what happens to events whose cost can't be estimated.
type UnknownCostPolicy uint8

const (
	// ChargeWorstCase admits the event against Config.WorstCaseTokens.
	ChargeWorstCase UnknownCostPolicy = iota
	// RejectUnknown denies the event; it stays queued.
	RejectUnknown
)

func (p UnknownCostPolicy) String() string {
	switch p {
	case ChargeWorstCase:
		return "charge_worst_case"
	case RejectUnknown:
		return "reject_unknown"
	default:
		return fmt.Sprintf("policy(%d)", p)
	}
}

// Config describes the budgets of a Limiter and the processors built on it.
// A zero LimitRequests or LimitTokens leaves that dimension unconstrained; a
// zero Interval disables limiting altogether.
type Config struct {
	Processor       processor.Config
	LimitRequests   int
	LimitTokens     int
	Interval        time.Duration
	UnknownCost     UnknownCostPolicy
	WorstCaseTokens int
}

func (c Config) Validate() error {
	var errs []error
	if c.LimitRequests < 0 {
		errs = append(errs, fmt.Errorf("%w: request limit can't be negative, got %d", ErrInvalidConfig, c.LimitRequests))
	}
	if c.LimitTokens < 0 {
		errs = append(errs, fmt.Errorf("%w: token limit can't be negative, got %d", ErrInvalidConfig, c.LimitTokens))
	}
	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("%w: interval can't be negative, got %s", ErrInvalidConfig, c.Interval))
	}
	if c.WorstCaseTokens < 0 {
		errs = append(errs, fmt.Errorf("%w: worst case tokens can't be negative, got %d", ErrInvalidConfig, c.WorstCaseTokens))
	}
	if c.UnknownCost > RejectUnknown {
		errs = append(errs, fmt.Errorf("%w: unknown cost policy %s", ErrInvalidConfig, c.UnknownCost))
	}
	return errors.Join(errs...)
}

// worstCase is the charge for an event of unknown cost.
func (c Config) worstCase() int {
	if c.WorstCaseTokens > 0 {
		return c.WorstCaseTokens
	}
	return c.LimitTokens
}

type settings struct {
	calculator TokenCalculator
	logger     *slog.Logger
}

type Option = opts.Option[settings]

var (
	WithTokenCalculator = opts.ForName[settings, TokenCalculator]("calculator")
	WithLogger          = opts.ForName[settings, *slog.Logger]("logger")
)
