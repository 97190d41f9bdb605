// Package actuator talks to real device services over HTTP.
//
// One HTTPActuator serves one device family (lighting, music or
// notification). Every call goes through a circuit breaker so a dead vendor
// endpoint fails fast and the orchestrator's simulated fallback takes over
// without waiting for the timeout on every directive.
package actuator
