// Fixed-width big/little-endian load/store

package main

import "math"

// PutUint24BE stores the low 24 bits of v into b[0:3], big-endian.
func PutUint24BE(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// GetUint24BE loads a 24-bit big-endian unsigned integer from b[0:3].
func GetUint24BE(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// PutUint24LE stores the low 24 bits of v into b[0:3], little-endian.
func PutUint24LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// GetUint24LE loads a 24-bit little-endian unsigned integer from b[0:3].
func GetUint24LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// PutUint16BE stores a 16-bit big-endian unsigned integer into b[0:2].
func PutUint16BE(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

// GetUint16BE loads a 16-bit big-endian unsigned integer from b[0:2].
func GetUint16BE(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// PutUint16LE stores a 16-bit little-endian unsigned integer into b[0:2].
func PutUint16LE(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// GetUint16LE loads a 16-bit little-endian unsigned integer from b[0:2].
func GetUint16LE(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

// PutUint32BE stores a 32-bit big-endian unsigned integer into b[0:4].
func PutUint32BE(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// GetUint32BE loads a 32-bit big-endian unsigned integer from b[0:4].
func GetUint32BE(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// PutUint32LE stores a 32-bit little-endian unsigned integer into b[0:4].
func PutUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// GetUint32LE loads a 32-bit little-endian unsigned integer from b[0:4].
func GetUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// PutUint64BE stores a 64-bit big-endian unsigned integer into b[0:8].
func PutUint64BE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> uint(56-8*i))
	}
}

// GetUint64BE loads a 64-bit big-endian unsigned integer from b[0:8].
func GetUint64BE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// PutFloat64BE stores an IEEE-754 double in big-endian byte order, as
// AMF0 Number and Date values require.
func PutFloat64BE(b []byte, v float64) {
	PutUint64BE(b, math.Float64bits(v))
}

// GetFloat64BE loads an IEEE-754 double in big-endian byte order.
func GetFloat64BE(b []byte) float64 {
	return math.Float64frombits(GetUint64BE(b))
}
