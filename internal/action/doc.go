// Package action maps emotions to device directives and executes them.
//
// The policy table is the only place that decides how devices react to an
// emotion. The Orchestrator runs directives against a primary actuator per
// device family and falls back to an in-memory simulation whenever the
// primary is missing, slow or failing.
package action
