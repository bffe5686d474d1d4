package remote

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/warptools/pinflow/pfapi"
)

// MaxFrameSize bounds a single frame; larger length prefixes are framing errors.
const MaxFrameSize = 256 << 20

// Each frame is a 4 byte big-endian length followed by one dag-cbor encoded Message.

// Errors:
//
//   - pinflow-error-serialization -- when msg cannot be encoded
//   - pinflow-error-transport-fault -- when the frame cannot be written
func writeFrame(w io.Writer, msg *pfapi.Message) error {
	body, err := pfapi.EncodeCBOR(msg, "Message")
	if err != nil {
		return err
	}
	if len(body) > MaxFrameSize {
		return pfapi.ErrorTransport("writing frame", fmt.Errorf("frame of %d bytes exceeds limit", len(body)))
	}
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[4:], body)
	if _, err := w.Write(buf); err != nil {
		return pfapi.ErrorTransport("writing frame", err)
	}
	return nil
}

// Errors:
//
//   - pinflow-error-transport-fault -- when reading fails or the frame is malformed
func readFrame(r io.Reader) (pfapi.Message, error) {
	var msg pfapi.Message
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return msg, pfapi.ErrorTransport("reading frame header", err)
	}
	n := binary.BigEndian.Uint32(head[:])
	if n > MaxFrameSize {
		return msg, pfapi.ErrorTransport("reading frame header", fmt.Errorf("frame of %d bytes exceeds limit", n))
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return msg, pfapi.ErrorTransport("reading frame body", err)
	}
	if err := pfapi.DecodeCBOR(body, &msg, "Message"); err != nil {
		return msg, pfapi.ErrorTransport("decoding frame", err)
	}
	return msg, nil
}
