package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"obligo/internal/core"
)

// Cell encoding. Integers are fixed-width big-endian: 8 bytes for ids,
// timestamps and counters, 16 bytes for amounts so large currency sums
// never overflow. Strings are u32 length-prefixed UTF-8. A record cell is:
//
//	id(8) due(8) state(1) hasRecurrence(1) [frequencyDays(4)] amount(16)
//	nameLen(4) name categoryLen(4) category

const amountWidth = 16

var (
	errShortCell   = errors.New("cell too short")
	errTrailing    = errors.New("trailing bytes in cell")
	errBadState    = errors.New("unknown state byte")
	errBadFlag     = errors.New("unknown recurrence flag byte")
	errInvalidUTF8 = errors.New("string field is not valid UTF-8")
)

func encodeU64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func decodeU64(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, errShortCell
	}
	return binary.BigEndian.Uint64(data), nil
}

// encodeAmount writes a non-negative integral amount as 16 big-endian
// bytes. Amounts are validated positive and within the signed 128-bit
// range before they reach the codec, so the sign bit is never set.
func encodeAmount(d decimal.Decimal) []byte {
	buf := make([]byte, amountWidth)
	d.BigInt().FillBytes(buf)
	return buf
}

func decodeAmount(data []byte) (decimal.Decimal, error) {
	if len(data) != amountWidth {
		return decimal.Zero, errShortCell
	}
	return decimal.NewFromBigInt(new(big.Int).SetBytes(data), 0), nil
}

func encodeRecord(rec core.Record) []byte {
	size := 8 + 8 + 1 + 1 + amountWidth + 4 + len(rec.Name) + 4 + len(rec.Category)
	if rec.Recurrence != nil {
		size += 4
	}
	buf := make([]byte, 0, size)

	buf = binary.BigEndian.AppendUint64(buf, rec.ID)
	buf = binary.BigEndian.AppendUint64(buf, rec.Due)
	buf = append(buf, byte(rec.State))
	if rec.Recurrence != nil {
		buf = append(buf, 1)
		buf = binary.BigEndian.AppendUint32(buf, rec.Recurrence.FrequencyDays)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, encodeAmount(rec.Amount)...)
	buf = appendString(buf, rec.Name)
	buf = appendString(buf, rec.Category)
	return buf
}

func decodeRecord(data []byte) (core.Record, error) {
	var rec core.Record

	if len(data) < 8+8+1+1 {
		return rec, errShortCell
	}
	rec.ID = binary.BigEndian.Uint64(data)
	rec.Due = binary.BigEndian.Uint64(data[8:])
	state := data[16]
	if state > byte(core.Settled) {
		return rec, errBadState
	}
	rec.State = core.State(state)
	hasRecurrence := data[17]
	if hasRecurrence > 1 {
		return rec, errBadFlag
	}
	data = data[18:]

	if hasRecurrence == 1 {
		if len(data) < 4 {
			return rec, errShortCell
		}
		rec.Recurrence = &core.Recurrence{FrequencyDays: binary.BigEndian.Uint32(data)}
		data = data[4:]
	}

	if len(data) < amountWidth {
		return rec, errShortCell
	}
	amount, err := decodeAmount(data[:amountWidth])
	if err != nil {
		return rec, err
	}
	rec.Amount = amount
	data = data[amountWidth:]

	rec.Name, data, err = readString(data)
	if err != nil {
		return rec, fmt.Errorf("name: %w", err)
	}
	rec.Category, data, err = readString(data)
	if err != nil {
		return rec, fmt.Errorf("category: %w", err)
	}
	if len(data) != 0 {
		return rec, errTrailing
	}
	return rec, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func readString(data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", nil, errShortCell
	}
	n := binary.BigEndian.Uint32(data)
	data = data[4:]
	if uint32(len(data)) < n {
		return "", nil, errShortCell
	}
	s := string(data[:n])
	if !utf8.ValidString(s) {
		return "", nil, errInvalidUTF8
	}
	return s, data[n:], nil
}
