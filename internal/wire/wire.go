// Package wire implements the length-prefixed binary request/response
// protocol: request frames carry an argument count and length-prefixed
// argument bytes, response frames carry a one-byte tag followed by a
// tag-specific payload.
package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// MaxMsg is the largest permitted body for either a request frame or a
// serialized response, in bytes.
const MaxMsg = 32 << 20

// MaxArgs is the largest permitted argument count in a request frame.
const MaxArgs = 200_000

// Error codes, surfaced to the client inside an ERR tag.
const (
	ErrUnknown = 1 // unrecognized command or wrong arity
	ErrTooBig  = 2 // serialized response exceeded MaxMsg
	ErrBadTyp  = 3 // operation not applicable to the existing value's type
	ErrBadArg  = 4 // numeric parse failure or invalid argument
)

// Response tags.
const (
	TagNil = 0
	TagErr = 1
	TagStr = 2
	TagInt = 3
	TagDbl = 4
	TagArr = 5
)

// ErrMalformed is returned by ParseRequest when a frame's argument count
// or argument lengths are inconsistent with the body it was given.
var ErrMalformed = errors.New("wire: malformed request frame")

// ErrFrameTooBig is returned by ReadFrameLen when the declared body
// length exceeds MaxMsg.
var ErrFrameTooBig = errors.New("wire: frame exceeds maximum message size")

// ReadFrameLen decodes the 4-byte little-endian length prefix at the
// front of buf. It reports ok=false if fewer than 4 bytes are buffered.
func ReadFrameLen(buf []byte) (length uint32, ok bool, err error) {
	if len(buf) < 4 {
		return 0, false, nil
	}
	length = binary.LittleEndian.Uint32(buf)
	if length > MaxMsg {
		return length, true, ErrFrameTooBig
	}
	return length, true, nil
}

// ParseRequest decodes a request body (the bytes following the 4-byte
// frame length) into its argument list.
func ParseRequest(body []byte) ([][]byte, error) {
	if len(body) < 4 {
		return nil, ErrMalformed
	}
	argc := binary.LittleEndian.Uint32(body)
	body = body[4:]
	if argc > MaxArgs {
		return nil, ErrMalformed
	}
	args := make([][]byte, 0, argc)
	for i := uint32(0); i < argc; i++ {
		if len(body) < 4 {
			return nil, ErrMalformed
		}
		n := binary.LittleEndian.Uint32(body)
		body = body[4:]
		if uint64(n) > uint64(len(body)) {
			return nil, ErrMalformed
		}
		args = append(args, body[:n])
		body = body[n:]
	}
	if len(body) != 0 {
		return nil, ErrMalformed // trailing garbage after the declared arguments
	}
	return args, nil
}

// EncodeRequest serializes args into a full frame, including its 4-byte
// length prefix, for use by a client.
func EncodeRequest(args [][]byte) []byte {
	bodyLen := 4
	for _, a := range args {
		bodyLen += 4 + len(a)
	}
	out := make([]byte, 4, 4+bodyLen)
	binary.LittleEndian.PutUint32(out, uint32(bodyLen))
	out = appendU32(out, uint32(len(args)))
	for _, a := range args {
		out = appendU32(out, uint32(len(a)))
		out = append(out, a...)
	}
	return out
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU8(buf []byte, v uint8) []byte {
	return append(buf, v)
}

func appendI64(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

func appendF64(buf []byte, v float64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	return append(buf, tmp[:]...)
}

// Writer accumulates a single response's serialized bytes, including the
// placeholder-then-backfill handling for the frame header and for nested
// array counts.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with its 4-byte frame-length placeholder
// already reserved.
func NewWriter() *Writer {
	w := &Writer{buf: make([]byte, 4, 64)}
	return w
}

// Nil appends a NIL value.
func (w *Writer) Nil() {
	w.buf = appendU8(w.buf, TagNil)
}

// Str appends a STR value.
func (w *Writer) Str(s []byte) {
	w.buf = appendU8(w.buf, TagStr)
	w.buf = appendU32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// Int appends an INT value.
func (w *Writer) Int(v int64) {
	w.buf = appendU8(w.buf, TagInt)
	w.buf = appendI64(w.buf, v)
}

// Dbl appends a DBL value.
func (w *Writer) Dbl(v float64) {
	w.buf = appendU8(w.buf, TagDbl)
	w.buf = appendF64(w.buf, v)
}

// Err appends an ERR value.
func (w *Writer) Err(code uint32, msg string) {
	w.buf = appendU8(w.buf, TagErr)
	w.buf = appendU32(w.buf, code)
	w.buf = appendU32(w.buf, uint32(len(msg)))
	w.buf = append(w.buf, msg...)
}

// ArrHandle marks the position of an open array's element count, to be
// filled in by EndArr once every element has been written.
type ArrHandle int

// BeginArr appends an ARR tag with a zero placeholder count and returns a
// handle for EndArr to backfill once the element count is known.
func (w *Writer) BeginArr() ArrHandle {
	w.buf = appendU8(w.buf, TagArr)
	h := ArrHandle(len(w.buf))
	w.buf = appendU32(w.buf, 0)
	return h
}

// EndArr backfills the array element count reserved by BeginArr.
func (w *Writer) EndArr(h ArrHandle, n uint32) {
	binary.LittleEndian.PutUint32(w.buf[h:h+4], n)
}

// Arr appends a flat ARR value with a known-in-advance count; the caller
// must then write exactly n elements before calling anything else.
func (w *Writer) Arr(n uint32) {
	w.buf = appendU8(w.buf, TagArr)
	w.buf = appendU32(w.buf, n)
}

// Bytes finalizes the response, backfilling the frame-length header with
// the body length. If the body (excluding the 4-byte header) exceeds
// MaxMsg, the response is replaced in place with a TOO_BIG error.
func (w *Writer) Bytes() []byte {
	body := len(w.buf) - 4
	if body > MaxMsg {
		w.buf = w.buf[:4]
		w.Err(ErrTooBig, "response too big")
		body = len(w.buf) - 4
	}
	binary.LittleEndian.PutUint32(w.buf[:4], uint32(body))
	return w.buf
}
