// Package center routes notifications to push, email and SMS recipients and
// runs the alarm confirmation state machine.
//
// A Center is safe for concurrent use. Every entry point holds one mutex for
// its whole duration, so a timer tick can never interleave with a new alert.
package center
