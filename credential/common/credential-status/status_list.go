// Package credentialstatus issues and checks StatusList2021 revocation and
// suspension lists.
package credentialstatus

import (
	"fmt"

	"github.com/pilacorp/go-credential-exchange/credential/common/util"
)

// MinListLength is the smallest list, in entries, that gives holders
// herd privacy (16KB).
const MinListLength = 16 * 1024 * 8

// StatusList is a bitstring of credential statuses. Index 0 is the most
// significant bit of the first byte.
type StatusList struct {
	bits []byte
}

// NewStatusList returns a list of at least size entries, all unset.
func NewStatusList(size int) *StatusList {
	if size < MinListLength {
		size = MinListLength
	}
	return &StatusList{bits: make([]byte, (size+7)/8)}
}

// Len returns the number of entries.
func (l *StatusList) Len() int {
	return len(l.bits) * 8
}

// Set sets or clears the entry at index.
func (l *StatusList) Set(index int, value bool) error {
	if err := l.check(index); err != nil {
		return err
	}
	mask := byte(0x80 >> (index % 8))
	if value {
		l.bits[index/8] |= mask
	} else {
		l.bits[index/8] &^= mask
	}
	return nil
}

// Get returns the entry at index.
func (l *StatusList) Get(index int) (bool, error) {
	if err := l.check(index); err != nil {
		return false, err
	}
	return l.bits[index/8]&(0x80>>(index%8)) != 0, nil
}

// Encode returns the gzip compressed, base64url encoded list.
func (l *StatusList) Encode() (string, error) {
	return util.CompressToBase64URL(l.bits)
}

// DecodeStatusList parses an encodedList. limit bounds the decompressed size
// in bytes.
func DecodeStatusList(encoded string, limit int64) (*StatusList, error) {
	bits, err := util.DecompressFromBase64(encoded, limit)
	if err != nil {
		return nil, fmt.Errorf("invalid encodedList: %w", err)
	}
	if len(bits) == 0 {
		return nil, fmt.Errorf("encodedList is empty")
	}
	return &StatusList{bits: bits}, nil
}

func (l *StatusList) check(index int) error {
	if index < 0 || index >= l.Len() {
		return fmt.Errorf("status list index %d out of range [0, %d)", index, l.Len())
	}
	return nil
}
