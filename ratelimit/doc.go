// Package ratelimit specializes the processor with request and token budgets.
//
// A Limiter holds two budgets: remaining requests and remaining tokens. Both
// are refilled to their configured maximum once per interval by a background
// goroutine that runs while at least one user has started the limiter. The
// limiter is shared explicitly: hand the same *Limiter to every processor or
// executor that must draw from the same budget. Processors and executors
// built by NewProcessor and NewExecutor keep the replenisher running from
// Start to Stop and for the duration of Execute and Join.
//
// Admission happens in RequestPermission, which is installed as the
// processor's permission function. It estimates the token cost of an event,
// denies it when either budget is short and otherwise debits both budgets
// under one lock. Denied events stay queued and are retried on later passes.
//
// Token costs come from a TokenCalculator. When a cost can't be estimated the
// limiter follows its UnknownCostPolicy: ChargeWorstCase (the default) charges
// Config.WorstCaseTokens, RejectUnknown denies the event.
//
//	limiter, _ := ratelimit.NewLimiter(ratelimit.Config{
//	    Processor:     processor.Config{QueueCapacity: 10, CapacityRefreshTime: time.Second},
//	    LimitRequests: 60,
//	    LimitTokens:   100_000,
//	    Interval:      time.Minute,
//	})
//	exec, _ := ratelimit.NewExecutor[*ratelimit.APICalling](limiter)
package ratelimit
