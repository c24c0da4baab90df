// Package engine orchestrates template-driven completion requests: it
// normalizes caller parameters against template defaults, resolves
// placeholder variables, issues the root completion call, and drives the
// multi-stage fan-out/fan-in loop over the declared step sequence.
package engine
