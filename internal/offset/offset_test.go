package offset

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestDeterminePCOffset(t *testing.T) {
	tests := []struct {
		name      string
		curPC     int
		romOffset int
		expected  int
	}{
		{name: "bank window kept", curPC: 0xA123, romOffset: 0x3C010, expected: 0xA010},
		{name: "window at 0x8000", curPC: 0x8000, romOffset: 0x1FFF, expected: 0x9FFF},
		{name: "zero offset", curPC: 0xC000, romOffset: 0, expected: 0xC000},
		{name: "negative rom offset", curPC: 0xA000, romOffset: -5, expected: Unknown},
		{name: "negative pc", curPC: -1, romOffset: 0x10, expected: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeterminePCOffset(tt.curPC, tt.romOffset))
		})
	}
}

func TestDetermineROMOffset(t *testing.T) {
	tests := []struct {
		name     string
		pc       int
		curROM   int
		expected int
	}{
		{name: "bank kept", pc: 0xA010, curROM: 0x3C7FF, expected: 0x3C010},
		{name: "first bank", pc: 0x8005, curROM: 0x100, expected: 0x5},
		{name: "negative current", pc: 0xA000, curROM: -1, expected: Unknown},
		{name: "negative pc", pc: -1, curROM: 0x4000, expected: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetermineROMOffset(tt.pc, tt.curROM))
		})
	}
}

func TestOffsetRoundTrip(t *testing.T) {
	for _, r := range []int{0, 1, 0x10, 0x1FFF, 0x2000, 0x3C3F9, 0x7FFFF, 0x123456} {
		// any value carrying the same bank bits as r
		pc0 := (r & ROMBankMask) | 0x0ABC
		pc := DeterminePCOffset(pc0, r)
		assert.Equal(t, r, DetermineROMOffset(pc, pc0))
	}

	for _, r := range []int{-1, -2, -0x2000} {
		assert.Equal(t, Unknown, DetermineROMOffset(DeterminePCOffset(0xA000, r), 0xA000))
	}
}
