// Package commissioning drives the network membership lifecycle of the
// sensor: joining by network steering, rejoining after the parent is lost,
// and falling back to the secondary radio while Zigbee is down.
//
// # Overview
//
// The Controller is purely reactive. The network stack calls it through the
// Callbacks interface; the controller answers with high-level requests to
// the stack and schedules its own retries on the timer queue.
//
//	Uninitialized --init(joined)----------------> Joined
//	Uninitialized --init(not joined)------------> Steering
//	Steering      --SUCCESS---------------------> Joined
//	Steering      --NO_NETWORK/TARGET/TCLK------> Steering (tiered retry)
//	Joined        --PARENT_LOST/NO_SCAN_RESP----> RejoinPending
//	RejoinPending --REJOIN_FAILURE--------------> RejoinBackoff (6 min)
//	RejoinBackoff --timer-----------------------> RejoinPending
//
// # Retry Policy
//
// The first steer after boot waits a random jitter of 1 to 4094 ms so a
// power cut does not make a whole installation join at once. Failed steers
// back off in tiers keyed by the attempt counter:
//
//	attempts < 7   ->  9 * 1024 ms
//	attempts < 55  -> 55 * 1024 ms
//	otherwise      ->  attempts * 1024 ms (attempts saturates at 200)
//
// A successful join sets the counter to 55, not zero, so a device that has
// been on a network before retries at the slower rate.
//
// # Fallback Radio
//
// Every failure path requests the fallback (BLE) radio; a successful join
// stops it.
//
// At most one steer timer and one rejoin timer exist at any time. The
// Controller is driven from the main loop and is not safe for concurrent use.
package commissioning
