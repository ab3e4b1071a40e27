// Package invoke guards mutation runs with a file lock so at most one
// curator invocation operates on the library at a time.
package invoke
