package rawxfer

/*------------------------------------------------------------------
 *
 * Purpose:	Wire framing for raw transfers.
 *
 * Description:	Single file mode:
 *
 *		  +--------+----------------------+
 *		  | size 4 | payload, size bytes  |
 *		  +--------+----------------------+
 *
 *		Batch mode, per file:
 *
 *		  +--------+-------------+---------------+---------+
 *		  | size 4 | name 16 NUL | md5 32 hex    | payload |
 *		  +--------+-------------+---------------+---------+
 *
 *		Size is always most significant byte first no matter
 *		what the host byte order is.
 *
 *------------------------------------------------------------------*/

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const SIZE_HEADER_LEN = 4

const BATCH_NAME_LEN = 16 /* Filename field, NUL padded. */

const BATCH_NAME_MAX = BATCH_NAME_LEN - 1 /* Longest name we will send, leaves room for a NUL. */

const BATCH_HEADER_LEN = SIZE_HEADER_LEN + BATCH_NAME_LEN + DIGEST_HEX_LEN /* 52 */

const MAX_FRAME_SIZE = math.MaxUint32

func size_header_encode(size uint32) []byte {
	var b = make([]byte, SIZE_HEADER_LEN)
	binary.BigEndian.PutUint32(b, size)

	return b
}

func size_header_decode(b []byte) (uint32, error) {
	if len(b) < SIZE_HEADER_LEN {
		return 0, fmt.Errorf("size header: need %d bytes, got %d", SIZE_HEADER_LEN, len(b))
	}

	return binary.BigEndian.Uint32(b[:SIZE_HEADER_LEN]), nil
}

type BatchHeader struct {
	Size   uint32
	Name   string /* As it appeared on the wire, before sanitizing. */
	Digest string /* Hex, normally lowercase. */
}

/*------------------------------------------------------------------
 *
 * Name:	batch_header_encode
 *
 * Purpose:	Build the 52 byte header that precedes each file in a batch.
 *
 * Errors:	Name too long for the field, or digest not 32 characters.
 *
 *------------------------------------------------------------------*/

func batch_header_encode(h BatchHeader) ([]byte, error) {
	if len(h.Name) == 0 || len(h.Name) > BATCH_NAME_MAX {
		return nil, fmt.Errorf("batch header: name %q must be 1 to %d characters", h.Name, BATCH_NAME_MAX)
	}

	if len(h.Digest) != DIGEST_HEX_LEN {
		return nil, fmt.Errorf("batch header: digest %q must be %d characters", h.Digest, DIGEST_HEX_LEN)
	}

	var b = make([]byte, BATCH_HEADER_LEN)
	binary.BigEndian.PutUint32(b[0:SIZE_HEADER_LEN], h.Size)
	copy(b[SIZE_HEADER_LEN:SIZE_HEADER_LEN+BATCH_NAME_LEN], h.Name)
	copy(b[SIZE_HEADER_LEN+BATCH_NAME_LEN:], strings.ToLower(h.Digest))

	return b, nil
}

/*------------------------------------------------------------------
 *
 * Name:	batch_header_decode
 *
 * Purpose:	Pick apart a received 52 byte header.
 *
 * Description:	The name ends at the first NUL or at the end of the
 *		field.  Nothing here is trusted; the caller must run the
 *		name through sanitize_filename before touching the disk.
 *
 *------------------------------------------------------------------*/

func batch_header_decode(b []byte) (BatchHeader, error) {
	if len(b) != BATCH_HEADER_LEN {
		return BatchHeader{}, fmt.Errorf("batch header: need %d bytes, got %d", BATCH_HEADER_LEN, len(b))
	}

	var name = b[SIZE_HEADER_LEN : SIZE_HEADER_LEN+BATCH_NAME_LEN]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	return BatchHeader{
		Size:   binary.BigEndian.Uint32(b[0:SIZE_HEADER_LEN]),
		Name:   string(name),
		Digest: string(b[SIZE_HEADER_LEN+BATCH_NAME_LEN:]),
	}, nil
}

/*------------------------------------------------------------------
 *
 * Name:	sanitize_filename
 *
 * Purpose:	Make a name from the remote safe to create in the
 *		current directory.
 *
 * Description:	Delete everything except ASCII letters, digits, '.',
 *		'_' and '+'.  No '/' survives so the result can never
 *		leave the working directory.  An all-dots result such
 *		as "." or ".." is rejected too.
 *
 * Returns:	Sanitized name, possibly empty meaning unusable.
 *
 *------------------------------------------------------------------*/

func sanitize_filename(name string) string {
	var sb strings.Builder

	for i := 0; i < len(name); i++ {
		var c = name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			sb.WriteByte(c)
		case c == '.', c == '_', c == '+':
			sb.WriteByte(c)
		}
	}

	var s = sb.String()
	if s == "." || s == ".." {
		return ""
	}

	return s
}
