// Package normalize turns raw per-channel input into layer estimates.
//
// Every normalizer returns nil when its input carries too little to judge.
// That is an expected partial-input case, not an error: the caller simply
// leaves the channel out of fusion. Malformed or out-of-range fields are
// treated as absent.
package normalize
