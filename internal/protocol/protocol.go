// Package protocol defines the binary wire format spoken between the
// factorial client and server.
//
// Frames are fixed length with no length prefix or negotiation:
//
//	request:  24 bytes = begin(8) || end(8) || mod(8)
//	response:  8 bytes = result(8)
//
// All fields are unsigned 64-bit little-endian. The original protocol used
// native byte order and simply assumed compatible hosts; pinning
// little-endian keeps the frames byte-identical on the hosts it targeted
// while making the layout well defined everywhere.
//
// A connection is strictly synchronous: one request, then one response,
// repeated until the peer closes. A zero-byte read is an orderly shutdown; a
// partial frame is a protocol violation fatal to that connection only.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame sizes in bytes.
const (
	RequestSize  = 24
	ResponseSize = 8
)

// ErrShortFrame reports a frame shorter than its fixed size: the peer spoke,
// but not enough. The connection carrying it cannot be trusted further.
var ErrShortFrame = errors.New("short frame")

// ErrBadRequest reports a structurally complete request whose field values
// violate the computation's domain.
var ErrBadRequest = errors.New("bad request")

// Request asks a server for the modular product over [Begin, End].
type Request struct {
	Begin uint64
	End   uint64
	Mod   uint64
}

// Response carries one server's partial result, already reduced mod the
// request's modulus.
type Response struct {
	Result uint64
}

// Validate checks the request against the factorial domain: ranges start at
// 1, never invert, and the modulus is non-zero. A server must reject an
// invalid request before any arithmetic, since mod 0 is undefined.
func (r Request) Validate() error {
	if r.Begin == 0 {
		return fmt.Errorf("%w: begin must be >= 1", ErrBadRequest)
	}
	if r.Begin > r.End {
		return fmt.Errorf("%w: inverted range [%d, %d]", ErrBadRequest, r.Begin, r.End)
	}
	if r.Mod == 0 {
		return fmt.Errorf("%w: modulus must be > 0", ErrBadRequest)
	}
	return nil
}

// WriteRequest writes one 24-byte request frame.
func WriteRequest(w io.Writer, req Request) error {
	var buf [RequestSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], req.Begin)
	binary.LittleEndian.PutUint64(buf[8:16], req.End)
	binary.LittleEndian.PutUint64(buf[16:24], req.Mod)
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

// ReadRequest reads one 24-byte request frame. It returns io.EOF untouched
// when the peer closed before sending anything, and ErrShortFrame when the
// peer sent a truncated frame.
func ReadRequest(r io.Reader) (Request, error) {
	var buf [RequestSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Request{}, mapReadErr("request", err)
	}
	return Request{
		Begin: binary.LittleEndian.Uint64(buf[0:8]),
		End:   binary.LittleEndian.Uint64(buf[8:16]),
		Mod:   binary.LittleEndian.Uint64(buf[16:24]),
	}, nil
}

// WriteResponse writes one 8-byte response frame.
func WriteResponse(w io.Writer, resp Response) error {
	var buf [ResponseSize]byte
	binary.LittleEndian.PutUint64(buf[:], resp.Result)
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// ReadResponse reads one 8-byte response frame, with the same EOF and short
// frame semantics as ReadRequest.
func ReadResponse(r io.Reader) (Response, error) {
	var buf [ResponseSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Response{}, mapReadErr("response", err)
	}
	return Response{Result: binary.LittleEndian.Uint64(buf[:])}, nil
}

// mapReadErr normalizes io.ReadFull failures: a clean EOF passes through for
// callers to treat as orderly shutdown, a truncated read becomes
// ErrShortFrame, everything else keeps its transport error.
func mapReadErr(frame string, err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("read %s: %w", frame, ErrShortFrame)
	default:
		return fmt.Errorf("read %s: %w", frame, err)
	}
}
