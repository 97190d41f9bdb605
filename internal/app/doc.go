// Package app provides the application service layer.
//
// Service runs the signal pipeline: consent gate, normalization, fusion,
// the per-user state update with the response gate, device dispatch and
// broadcast. It also fronts consent and conversation reads for the HTTP
// layer. It depends on domain interfaces and the pure core packages only.
package app
