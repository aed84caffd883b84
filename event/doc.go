// Package event defines the unit of work the processor and executor dispatch.
//
// Every event carries an identifier, a creation timestamp and an Execution
// record. Its status only moves forward:
//
//	PENDING -> PROCESSING -> COMPLETED
//	                      \-> FAILED
//
// Once COMPLETED or FAILED, further transitions are ignored. Concrete events
// embed *Base, which owns the execution record and the transition rules, and
// implement Invoke. Invoke bodies start with Base.Start so that an event is
// invoked at most once, no matter how many times Invoke is called.
//
//	type ping struct{ *event.Base }
//
//	func (p *ping) Invoke(ctx context.Context) {
//	    if !p.Start() {
//	        return
//	    }
//	    began := time.Now()
//	    p.Finish("pong", nil, time.Since(began))
//	}
package event
