package gps

// Package gps bridges a u-blox GNSS receiver on a serial device to the trace
// channel.
//
// Startup order is fixed: configure the port, write the receiver
// configuration frames, then start reading. Every received byte is relayed to
// the trace sink unmodified and in arrival order; a passive observer (NMEA or
// UBX, per configuration) watches a copy of the flow to maintain a position
// snapshot and never touches the relayed bytes.
