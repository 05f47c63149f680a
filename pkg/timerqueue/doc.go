// Package timerqueue implements the millisecond event timer queue of the
// sensor main loop.
//
// Timers are kept ordered by remaining time. The main loop calls Process,
// which derives elapsed milliseconds from the free-running system timer and
// fires every timer that reached zero. A callback's return value decides what
// happens next:
//
//   - negative: the timer is removed
//   - zero: the timer is re-armed with its current period
//   - positive: the timer is re-armed with that many milliseconds
//
// # Sleep Integration
//
// While the processor sleeps the system timer is not a reliable time base.
// After wake the power manager reports the slept time with AdvanceBaseline
// and moves the reference tick with SetReferenceTick, so the next Process
// call does not count the same interval twice.
package timerqueue
