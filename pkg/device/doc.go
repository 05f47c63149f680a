// Package device assembles the sensor core and runs its main loop.
//
// Boot wires the timer queue, sleep scheduler, commissioning controller and
// fallback radio switch over the board's hardware, restores the security
// frame counter saved before a deep sleep, arms the wake pins and starts
// the network stack. Step is one main-loop iteration:
//
//	low battery?           -> hibernate (long deep sleep)
//	timer queue            -> fire expired timers
//	network stack task     -> deliver stack callbacks
//	fallback radio         -> service start requests
//	wake pin polarity      -> re-arm the opposite edge
//	sleep scheduler        -> sleep until the next timer
//
// Sensor acquisition and display output are not part of the core; they
// hook in through the Services and Indicator interfaces of package
// commissioning.
package device
