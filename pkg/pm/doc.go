// Package pm implements the sleep scheduler of the sensor core.
//
// Each idle iteration the main loop calls Scheduler.EvaluateAndSleep. The
// scheduler checks that the network stack is idle, looks up the nearest
// pending timer and, if there is time to spare, powers the radio down and
// enters a low-power mode until that timer or a wake pin fires:
//
//	stack busy or task not drained  -> return, nothing touched
//	no pending timer                -> return (or pad-only deep sleep, opt-in)
//	nearest timer already due       -> return
//	remaining <= ShortSleepMax      -> Platform.Sleep(DEEP_RETENTION, ...)
//	remaining >  ShortSleepMax      -> Platform.LongSleep(DEEP_RETENTION, ...)
//
// On wake the elapsed 32 kHz ticks are converted through the lptick.Source
// chosen at boot and fed back into the timer queue (ReconcileElapsedTime),
// the radio is restored to its channel and interrupts are re-enabled.
//
// Before a non-retention deep sleep the outgoing security frame counter is
// written to the NV analog registers. ReadPersistedFrameCounter recovers it
// once, on the next boot.
//
// The hardware is reached only through the Platform, Radio and Stack
// interfaces, so the same scheduler drives a real board or the simulator in
// package sim.
package pm
