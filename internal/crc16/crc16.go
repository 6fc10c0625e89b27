// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package crc16 is the CRC-16/XMODEM used by NuFX
// (poly 0x1021, shifted out high bit first, zero init).
package crc16

var crctab [256]uint16

func init() {
	for i := range uint16(256) {
		k := i << 8
		for range 8 {
			if k&0x8000 != 0 {
				k = k<<1 ^ 0x1021
			} else {
				k <<= 1
			}
		}
		crctab[i] = k
	}
}

// Sum folds buf into seed and returns the new CRC.
// Chainable across partial buffers.
func Sum(seed uint16, buf []byte) uint16 {
	crc := seed
	for _, ch := range buf {
		crc = crc<<8 ^ crctab[byte(crc>>8)^ch]
	}
	return crc
}
