// Package sim runs the sensor core on a host.
//
// Platform stands in for the chip: its 32 kHz and system tick counters are
// derived from a virtual clock that only moves when the device sleeps or
// when the simulator charges active time. Stack is a scripted network stack
// that delivers callbacks from its task cycle, so commissioning outcomes
// can be queued in advance or injected interactively. Simulator assembles a
// Device over these parts and reboots it whenever the platform resets.
// Runner paces a Simulator against wall time through a clock.Clock.
package sim
