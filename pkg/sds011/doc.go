// Package sds011 provides the protocol core for the SDS011 particulate
// matter sensor.
package sds011

// The sensor reports PM2.5 and PM10 concentrations over one of two links:
//
// UART: 10-byte measurement frames arrive roughly once per second and
// 19-byte command frames are sent to change the working period or put
// the sensor to sleep. Frames are delimited by header/tail bytes and
// protected by an additive checksum. Malformed frames are dropped
// silently, the last valid measurement is kept.
//
// PWM: the pulse widths on two signal lines encode the values. A timer
// channel alternating its capture polarity drives a 3-state sequencer
// which reads both compare registers once per cycle.
//
// Either way the latest values land in a Store which is polled by callers.
