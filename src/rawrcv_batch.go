package rawxfer

/*------------------------------------------------------------------
 *
 * Purpose:   	Receive a batch of files, each one carrying its own
 *		name and digest.
 *
 * Description:	Each file is preceded by a 52 byte header:
 *
 *			4	size, big endian.
 *			16	file name, NUL padded.
 *			32	MD5 digest of the contents, hex.
 *
 *		After each file we reply E0, E2 or OK and wait for the
 *		next header.  The remote decides what to send next,
 *		normally the same file again after a failure.
 *
 *		We finish when N different files have been received
 *		good.  See dedupe.go for what "different" means.
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

func rcv_batch_args(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("need the number of files to receive")
	}

	var n, err = strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("number of files %q must be a positive integer", args[0])
	}

	return n, nil
}

/*-------------------------------------------------------------------
 *
 * Name:        rawrcv_batch
 *
 * Purpose:     Receive files until N different ones arrived good.
 *
 * Inputs:	args	- Positional arguments: N.
 *
 * Returns:	Exit status.
 *		0 after N files.
 *		1 for anything that stops the batch: bad N, no header,
 *		  a name with nothing usable left in it, a name that
 *		  is our own log or configuration, or a file we can't
 *		  create.
 *
 *--------------------------------------------------------------------*/

func rawrcv_batch(ctx context.Context, cfg *Config, clog *CommLog, lnk Link, args []string) int {
	var want, argErr = rcv_batch_args(args)
	if argErr != nil {
		diag.Error("bad arguments", "err", argErr)
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

	clog.Printf("ready to receive %d files", want)
	link_send_token(lnk, TOKEN_READY)

	var seen = dedupe_init()

	for seen.dedupe_count() < want {
		var hdr, hdrErr = rcv_header(ctx, lnk, BATCH_HEADER_LEN, cfg.inter_file_timeout(), cfg.ByteTimeout)
		if hdrErr != nil {
			clog.Printf("did not receive header for file %d of %d (%s)", seen.dedupe_count()+1, want, link_trouble(hdrErr))
			return 1
		}

		var h, decodeErr = batch_header_decode(hdr)
		if decodeErr != nil {
			clog.Printf("bad header: %s", decodeErr)
			return 1
		}

		var name = sanitize_filename(h.Name)
		if name == "" {
			clog.Printf("no usable file name in %q", h.Name)
			return 1
		}
		if name != h.Name {
			diag.Warn("file name changed", "sent", h.Name, "using", name)
		}
		if cfg.reserved_name(name) {
			clog.Printf("refusing to overwrite %s", name)
			return 1
		}

		var outcome, fileErr = rcv_batch_file(ctx, cfg, clog, lnk, name, h)
		if fileErr != nil {
			clog.Printf("can't create %s: %s", name, fileErr)
			return 1
		}

		link_send_token(lnk, outcome.Token())

		var counted = outcome == OUTCOME_OK && seen.dedupe_remember(name)

		clog.Printf("%s: %s", name, outcome.Token())
		diag.Debug("batch progress", "file", name, "counted", counted, "have", seen.dedupe_count(), "want", want)
	}

	clog.Printf("received %d files", want)

	return 0
}

// rcv_batch_file receives one payload into name and checks it.
// An error means the file couldn't be created, nothing was read.
func rcv_batch_file(ctx context.Context, cfg *Config, clog *CommLog, lnk Link, name string, h BatchHeader) (Outcome, error) {
	var fp, err = os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return OUTCOME_SIZE_MISMATCH, err
	}

	clog.Printf("Receiving %d bytes of %s", h.Size, name)

	var start = time.Now()
	var bw = bufio.NewWriter(fp)
	var nread, rcvErr = rcv_bytes(ctx, lnk, bw, int64(h.Size), cfg.ByteTimeout, cfg.ByteTimeout)
	var flushErr = bw.Flush()
	var closeErr = fp.Close()

	clog.Printf("Received %d bytes of %s (%.1f Bps)", nread, name, bytes_per_second(nread, time.Since(start)))

	if rcvErr != nil {
		diag.Warn("transfer stopped short", "file", name, "reason", link_trouble(rcvErr))
	}
	if err := errors.Join(flushErr, closeErr); err != nil {
		diag.Error("writing output file", "file", name, "err", err)
	}

	var got, digestErr = digest_file(name)
	if digestErr != nil {
		diag.Error("can't read back output file", "err", digestErr)
	}

	return rcv_verify(nread, got, Expectation{
		Declared:   int64(h.Size),
		CrossSize:  -1,
		HaveDigest: true,
		Digest:     h.Digest,
	}), nil
}
