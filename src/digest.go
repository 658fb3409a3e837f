package rawxfer

/*------------------------------------------------------------------
 *
 * Purpose:	Whole file integrity digest.
 *
 * Description:	Both ends compute the same 128 bit digest over the exact
 *		bytes of a file.  It only has to catch accidental corruption
 *		on the link, so MD5 is plenty; it is what the remote computes
 *		and what goes into the batch header.
 *
 *		The digest travels as 32 lowercase hexadecimal characters.
 *
 *------------------------------------------------------------------*/

import (
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

const DIGEST_LEN = md5.Size /* Bytes in a digest. */

const DIGEST_HEX_LEN = 2 * DIGEST_LEN /* Characters when rendered as hex. */

const DIGEST_COPY_BUFF = 4096 /* Read size when digesting a file. */

type Digest [DIGEST_LEN]byte

// String renders the digest as 32 lowercase hex characters.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Matches compares against a hex rendering, ignoring case.
func (d Digest) Matches(s string) bool {
	return strings.EqualFold(d.String(), s)
}

/*------------------------------------------------------------------
 *
 * Name:	digest_bytes
 *
 * Purpose:	Digest an in-memory buffer.
 *
 *------------------------------------------------------------------*/

func digest_bytes(b []byte) Digest {
	return Digest(md5.Sum(b)) //nolint:gosec
}

/*------------------------------------------------------------------
 *
 * Name:	digest_reader
 *
 * Purpose:	Digest everything until EOF.
 *
 * Returns:	Digest and number of bytes consumed.
 *
 *------------------------------------------------------------------*/

func digest_reader(r io.Reader) (Digest, int64, error) {
	var h = md5.New() //nolint:gosec
	var buf = make([]byte, DIGEST_COPY_BUFF)

	var n, err = io.CopyBuffer(h, r, buf)
	if err != nil {
		return Digest{}, n, err
	}

	var d Digest
	copy(d[:], h.Sum(nil))

	return d, n, nil
}

/*------------------------------------------------------------------
 *
 * Name:	digest_file
 *
 * Purpose:	Digest a file as it is on disk.
 *
 * Description:	The receiver uses this after closing the output file so
 *		the check covers what actually landed, not what we
 *		think we wrote.
 *
 *------------------------------------------------------------------*/

func digest_file(path string) (Digest, error) {
	var fp, openErr = os.Open(path)
	if openErr != nil {
		return Digest{}, openErr
	}
	defer fp.Close()

	var d, _, err = digest_reader(fp)
	if err != nil {
		return Digest{}, fmt.Errorf("digest %s: %w", path, err)
	}

	return d, nil
}

// digest_parse accepts exactly DIGEST_HEX_LEN hex characters.
func digest_parse(s string) (Digest, error) {
	if len(s) != DIGEST_HEX_LEN {
		return Digest{}, fmt.Errorf("digest %q: want %d hex characters, got %d", s, DIGEST_HEX_LEN, len(s))
	}

	var raw, err = hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("digest %q: %w", s, err)
	}

	var d Digest
	copy(d[:], raw)

	return d, nil
}
