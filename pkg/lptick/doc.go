// Package lptick converts low-power 32 kHz tick counts into milliseconds.
//
// The sleep timer of the sensor runs from one of two 32 kHz sources, chosen
// once at boot:
//
//   - an external 32768 Hz crystal (exact binary divisor)
//   - the internal 32000 Hz RC oscillator
//
// The two differ by a fixed ratio. A Source captures the conversion for one
// of them and is injected wherever 32 kHz ticks are turned into time, so the
// constants of one oscillator are never applied to ticks of the other.
//
// Sub-millisecond remainders are expressed in system timer ticks (the high
// speed free-running counter, 16 ticks per microsecond on the reference
// board) so they can be handed back to the timer queue without losing
// precision.
package lptick
