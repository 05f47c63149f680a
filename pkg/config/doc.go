// Package config loads the YAML device profile.
//
// A profile selects the 32 kHz clock source, sleep limits, wake pins,
// commissioning timing, and where the simulator keeps its NV image, event
// log and metrics endpoint. Every field has a default; an empty file is a
// valid profile.
//
//	clock:
//	  source: crystal        # or rc
//	  sys_ticks_per_us: 16
//	power:
//	  short_sleep_max: 100s
//	  wake_pins:
//	    - {pin: 2, level: low}
//	commissioning:
//	  rejoin_backoff: 6m
package config
