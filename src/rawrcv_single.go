package rawxfer

/*------------------------------------------------------------------
 *
 * Purpose:   	Receive one file whose name is given by the caller.
 *
 * Description:	The wire carries only a four byte length, big endian,
 *		then that many bytes of file.
 *
 *		The caller can also give the size and MD5 digest it
 *		expects, obtained some other way.  Then we reply with
 *		one of E0, E1, E2 or OK so the remote knows whether to
 *		send again.  Without them we just report what we got
 *		in the log and the exit status.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type rcvSingleArgs struct {
	path string

	check  bool /* Size and digest were given. */
	size   int64
	digest string
}

func rcv_single_args(args []string) (rcvSingleArgs, error) {
	var a rcvSingleArgs

	switch len(args) {
	case 1:
	case 3:
		var size, err = strconv.ParseInt(args[1], 10, 64)
		if err != nil || size < 0 {
			return a, fmt.Errorf("expected size %q is not a number of bytes", args[1])
		}
		if _, err := digest_parse(args[2]); err != nil {
			return a, err
		}
		a.check = true
		a.size = size
		a.digest = args[2]
	default:
		return a, errors.New("need a file name, optionally followed by expected size and digest")
	}

	a.path = args[0]
	if a.path == "" {
		return a, errors.New("empty file name")
	}

	return a, nil
}

/*-------------------------------------------------------------------
 *
 * Name:        rawrcv_single
 *
 * Purpose:     Receive one file.
 *
 * Inputs:	args	- Positional arguments: path [size digest].
 *
 * Returns:	Exit status.
 *		0 for OK, or a complete transfer when nothing was
 *		  given to check against.
 *		1 for bad arguments, a header that never came, or a
 *		  short transfer.
 *		2 for E1 or E2.
 *
 *--------------------------------------------------------------------*/

func rawrcv_single(ctx context.Context, cfg *Config, clog *CommLog, lnk Link, args []string) int {
	var a, argErr = rcv_single_args(args)
	if argErr != nil {
		diag.Error("bad arguments", "err", argErr)
		link_send_token(lnk, TOKEN_NO)
		return 1
	}

	var fp, createErr = os.Create(a.path)
	if createErr != nil {
		diag.Error("can't create output file", "err", createErr)
		link_send_token(lnk, TOKEN_NO)
		return 1
	}

	var restore, rawErr = lnk.SetRaw(RAW_RECEIVE)
	if rawErr != nil {
		diag.Warn("could not set raw mode", "err", rawErr)
	}
	defer func() {
		if err := restore(); err != nil {
			diag.Warn("could not restore terminal", "err", err)
		}
	}()

	clog.Printf("ready to receive %s", a.path)
	link_send_token(lnk, TOKEN_READY)

	var hdr, hdrErr = rcv_header(ctx, lnk, SIZE_HEADER_LEN, cfg.ByteTimeout, cfg.ByteTimeout)
	if hdrErr != nil {
		clog.Printf("did not receive four size bytes for %s", a.path)
		diag.Debug("header", "err", hdrErr, "reason", link_trouble(hdrErr))
		fp.Close()
		os.Remove(a.path)
		return 1
	}

	clog.Printf("received four size bytes %d %d %d %d", hdr[0], hdr[1], hdr[2], hdr[3])

	var size, _ = size_header_decode(hdr)

	clog.Printf("Receiving %d bytes of %s", size, a.path)

	var start = time.Now()
	var bw = bufio.NewWriter(fp)
	var nread, rcvErr = rcv_bytes(ctx, lnk, bw, int64(size), cfg.ByteTimeout, cfg.ByteTimeout)
	var flushErr = bw.Flush()
	var closeErr = fp.Close()

	clog.Printf("Received %d bytes of %s (%.1f Bps)", nread, a.path, bytes_per_second(nread, time.Since(start)))

	if rcvErr != nil {
		diag.Warn("transfer stopped short", "file", a.path, "reason", link_trouble(rcvErr))
	}
	if err := errors.Join(flushErr, closeErr); err != nil {
		// Whatever did reach the disk gets checked below.
		diag.Error("writing output file", "file", a.path, "err", err)
	}

	if !a.check {
		return IfThenElse(nread == int64(size) && flushErr == nil && closeErr == nil, 0, 1)
	}

	var got, digestErr = digest_file(a.path)
	if digestErr != nil {
		diag.Error("can't read back output file", "err", digestErr)
	}

	var outcome = rcv_verify(nread, got, Expectation{
		Declared:   int64(size),
		CrossSize:  a.size,
		HaveDigest: true,
		Digest:     a.digest,
	})

	clog.Printf("%s: %s", a.path, outcome.Token())
	link_send_token(lnk, outcome.Token())

	switch outcome {
	case OUTCOME_OK:
		return 0
	case OUTCOME_SIZE_MISMATCH:
		return 1
	default:
		return 2
	}
}
