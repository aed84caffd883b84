/*
Package tool defines callable tools and the event of invoking one.

Tools are plain Go functions. Their parameter schema is derived from the
function signature through reflection, and arguments arriving as decoded JSON
are converted to the declared parameter types before the call.

# Key Concepts

 1. Definition
    A tool is described by its function signature and metadata:
    - Name: identifier the registry knows it by
    - Description: human readable explanation
    - Parameters: names of the positional parameters
    - Schema: JSON schema of the arguments, derived when not given
    - PreProcess and PostProcess: optional argument and result rewrites
    - Strict: reject missing required and unexpected arguments

 2. Call
    A Call is an event.Event. Invoking it runs, in order: the pre-processor,
    argument validation, the function and the post-processor. Any failure
    ends the call as FAILED with the error rendered into its execution
    record; success stores the (post-processed) result as the response.

 3. Registry
    A Registry maps names to definitions and turns a name plus arguments
    into a Call.

# Usage Examples

Basic tool definition:

	func add(x, y int) int {
		return x + y
	}

	sum := tool.Must(add,
		tool.Description("Adds two numbers"),
		tool.Parameters("x", "y"),
		tool.Strict(true),
	)

Functions may take a context first and may return an error:

	func fetch(ctx context.Context, url string) (string, error)

A single map parameter receives every argument as is:

	func echo(args map[string]any) map[string]any { return args }

Dispatching a call through an executor:

	call, err := registry.MatchJSON("add", []byte(`{"x":1,"y":2}`))
	if err != nil {
		return err
	}
	_ = exec.Append(ctx, call)
*/
package tool
