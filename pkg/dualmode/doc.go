// Package dualmode manages the fallback (BLE) radio of the dual-mode
// sensor.
//
// While Zigbee is not joined the device makes itself reachable over the
// secondary radio. The commissioning controller only raises a request
// flag; the main loop calls Switch.Poll, which brings the radio up outside
// of any stack callback. A successful join stops it immediately.
//
// On the host the secondary radio is stood in for by an mDNS advertisement
// (MDNSAdvertiser), so a simulated device in fallback mode can be seen with
// any DNS-SD browser:
//
//	_thsensor._tcp.local.  THS-<device id>  txt: id=... mode=fallback
package dualmode
