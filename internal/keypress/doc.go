// Package keypress watches a terminal for the keys that stop a progress
// session.
//
// Listen switches the terminal into cbreak mode (no echo, no line
// buffering) while leaving output processing alone, so progress rendering
// is unaffected. It polls with a short timeout instead of parking a
// goroutine in read, which lets it return promptly when its context ends.
package keypress
