package auth

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/nghego/nghego/internal/apperr"
)

// BinaryRequest is the compact, length-prefixed wire form offered to
// trusted clients as an alternative to the query-string Subsonic auth
// parameters: one frame carries the same (username, salt, token) triple
// plus an opaque payload, all length-prefixed, so a client that already
// holds a persistent connection need not re-encode auth as URL params
// per request.
//
// Wire format (all integers big-endian):
//
//	u16 usernameLen | username
//	u16 saltLen     | salt
//	u16 tokenLen    | token (hex-encoded md5)
//	u32 payloadLen  | payload
type BinaryRequest struct {
	Username string
	Salt     string
	Token    string
	Payload  []byte
}

func WriteBinaryRequest(w io.Writer, req BinaryRequest) error {
	if err := writeLenPrefixed(w, []byte(req.Username)); err != nil {
		return err
	}
	if err := writeLenPrefixed(w, []byte(req.Salt)); err != nil {
		return err
	}
	if err := writeLenPrefixed(w, []byte(req.Token)); err != nil {
		return err
	}
	return writeLenPrefixed32(w, req.Payload)
}

func ReadBinaryRequest(r io.Reader) (*BinaryRequest, error) {
	username, err := readLenPrefixed(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidParameter, "read username", err)
	}
	salt, err := readLenPrefixed(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidParameter, "read salt", err)
	}
	token, err := readLenPrefixed(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidParameter, "read token", err)
	}
	payload, err := readLenPrefixed32(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidParameter, "read payload", err)
	}
	return &BinaryRequest{Username: string(username), Salt: string(salt), Token: string(token), Payload: payload}, nil
}

const maxFrameLen = 1 << 20 // 1 MiB per frame, well above any auth-field or small payload size

func writeLenPrefixed(w io.Writer, b []byte) error {
	if len(b) > 1<<16-1 {
		return fmt.Errorf("field too long: %d bytes", len(b))
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	_, err := io.ReadFull(r, buf)
	return buf, err
}

func writeLenPrefixed32(w io.Writer, b []byte) error {
	if len(b) > maxFrameLen {
		return fmt.Errorf("payload too long: %d bytes", len(b))
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readLenPrefixed32(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	if n > maxFrameLen {
		return nil, fmt.Errorf("payload too long: %d bytes", n)
	}
	buf := make([]byte, n)
	_, err := io.ReadFull(r, buf)
	return buf, err
}
