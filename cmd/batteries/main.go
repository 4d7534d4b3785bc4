// Command batteries is a smoke-test tool for the batteries telemetry
// library: it builds a session from the local configuration, replays a
// sequence of page views and errors against the configured sinks, and
// verifies that shutdown drains cleanly.
package main

func main() {
	Execute()
}
