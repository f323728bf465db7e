// Package memory implements the goIdentity store interfaces in process
// memory. It is meant for tests, examples and single-process tools; data
// does not survive a restart.
package memory
