package sds011

import "sync/atomic"

// Measurement is a pair of concentrations in µg/m³.
type Measurement struct {
	PM25 uint16
	PM10 uint16
}

// Store holds the latest Measurement.
// PM2.5, PM10 and an update sequence are packed into one word so a
// reader never sees values from two different updates.
type Store struct {
	word atomic.Uint64
}

func pack(m Measurement, seq uint32) uint64 {
	return uint64(m.PM25) | uint64(m.PM10)<<16 | uint64(seq)<<32
}

func unpack(w uint64) (Measurement, uint32) {
	return Measurement{PM25: uint16(w), PM10: uint16(w >> 16)}, uint32(w >> 32)
}

// Update replaces the stored measurement and bumps the sequence.
func (s *Store) Update(m Measurement) {
	for {
		old := s.word.Load()
		_, seq := unpack(old)
		if s.word.CompareAndSwap(old, pack(m, seq+1)) {
			return
		}
	}
}

// Load returns the latest measurement.
func (s *Store) Load() Measurement {
	m, _ := unpack(s.word.Load())
	return m
}

// Snapshot returns the latest measurement and its update sequence.
// The sequence is 0 until the first update.
func (s *Store) Snapshot() (Measurement, uint32) {
	return unpack(s.word.Load())
}

// PM25 returns the latest PM2.5 value.
func (s *Store) PM25() uint16 {
	return s.Load().PM25
}

// PM10 returns the latest PM10 value.
func (s *Store) PM10() uint16 {
	return s.Load().PM10
}
