// Package checkers holds the built-in checks. Each file registers itself
// with the check registry from init().
package checkers
