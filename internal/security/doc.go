// Package security summarizes an engine configuration into a posture report
// and flags settings that weaken it.
package security
