// Package domain defines the core domain types and interfaces.
//
// Files are concept-oriented (emotion.go, consent.go, conversation.go,
// action.go). No infrastructure code here, just contracts and value types,
// so every other package can depend on it without import cycles.
package domain
