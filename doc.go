/*
Package roost is an in-process event execution core: events are tracked in
ordered collections, queued into capacity-limited processors and run
asynchronously while their status and outcome stay inspectable.

The module is organised in layers, leaves first:

  - element: identifiers and the Element contract shared by everything stored
  - progression: an ordered, mutable sequence of identifiers
  - pile: a concurrency-safe, ordered, unique-keyed container of elements
  - event: the Event lifecycle (pending, processing, completed, failed) and its Execution record
  - processor: a queue consumer dispatching at most QueueCapacity events per refresh period
  - executor: owns a pile of events and forwards the pending ones into a processor
  - ratelimit: request and token budgets on top of the processor, plus the APICalling event
  - tool: tool definitions, argument validation and the tool Call event
  - pubsub: fan-out of terminal transitions to local or NATS subscribers

# Basic Usage

Register a tool, create an executor for tool calls and wait for them:

	tools, _ := tool.NewRegistry(
		tool.Must(getWeather,
			tool.Name("get_weather"),
			tool.Parameters("location", "date"),
			tool.Strict(true),
		),
	)

	exec, _ := executor.New[*tool.Call](processor.Config{
		QueueCapacity:       4,
		CapacityRefreshTime: 100 * time.Millisecond,
	})

	call, _ := tools.MatchJSON("get_weather", []byte(`{"location":"NYC","date":"2024-05-01"}`))
	_ = exec.Append(ctx, call)
	_ = exec.Join(ctx)

	fmt.Println(call.Execution().Response)

Rate limited calls go through a ratelimit.Limiter shared by one or more
executors:

	limiter, _ := ratelimit.NewLimiter(ratelimit.Config{
		Processor:     processor.Config{QueueCapacity: 10, CapacityRefreshTime: time.Second},
		LimitRequests: 60,
		LimitTokens:   100_000,
		Interval:      time.Minute,
	})
	exec, _ := ratelimit.NewExecutor[*ratelimit.APICalling](limiter)
	go exec.Execute(ctx)

# Observing executions

Processors report every terminal transition to their observers. The pubsub
package turns a topic into an observer so transitions can be logged or sent
over NATS:

	topic := pubsub.Local().Topic(ctx, "calls")
	_, _ = topic.Subscribe(ctx, pubsub.LogHook(nil))

	exec, _ := executor.New[*tool.Call](cfg,
		executor.WithProcessorOptions(processor.WithObserver(pubsub.Observe(topic))),
	)

The examples directory holds runnable programs for both flows, and
cmd/roost-tool-gen generates tool definitions from annotated functions.
*/
package roost
