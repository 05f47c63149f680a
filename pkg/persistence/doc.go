// Package persistence provides file-backed state for the host build of the
// sensor firmware.
//
// Two kinds of state outlive a simulated power cycle:
//
//   - the analog register image (AnalogStore, CBOR encoded), which stands in
//     for the retention registers that keep the frame counter across deep
//     sleep
//   - the network state (NetworkStateStore, JSON encoded), which stands in
//     for the Zigbee stack's NV section: factory-new flag, channel, poll rate
//     attribute
package persistence
