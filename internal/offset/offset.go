// Package offset provides the bank arithmetic between linear ROM offsets and
// bank-relative program counter offsets.
package offset

const (
	// BankSize is the size of a switchable PRG bank window.
	BankSize = 0x2000

	// LowOffsetMask selects the bank-local bits of an offset.
	LowOffsetMask = BankSize - 1
	// HighBankMask selects the bits of a 16 bit program counter that encode
	// which bank window is mapped.
	HighBankMask = 0xFFFF &^ LowOffsetMask
	// ROMBankMask selects the bits of a linear ROM offset that encode the bank.
	ROMBankMask = ^LowOffsetMask

	// Unknown is the sentinel for an offset that can not be determined.
	Unknown = -1
)

// DeterminePCOffset returns the 16 bit program counter for romOffset, keeping
// the bank window that is encoded in curPCOffset.
func DeterminePCOffset(curPCOffset, romOffset int) int {
	if romOffset < 0 || curPCOffset < 0 {
		return Unknown
	}
	return (curPCOffset & HighBankMask) | (romOffset & LowOffsetMask)
}

// DetermineROMOffset returns the linear ROM offset for pcOffset, keeping the
// bank that is encoded in curROMOffset.
func DetermineROMOffset(pcOffset, curROMOffset int) int {
	if curROMOffset < 0 || pcOffset < 0 {
		return Unknown
	}
	return (curROMOffset & ROMBankMask) | (pcOffset & LowOffsetMask)
}
