package rawxfer

/*------------------------------------------------------------------
 *
 * Purpose:   	Receive side of the raw transfer protocol.
 *
 * Description:	Both receive modes share the same pieces:
 *
 *		  - get a header of known length, giving up if the line
 *		    goes quiet;
 *
 *		  - get the payload the header announced, stopping early
 *		    on silence so the caller sees a short count;
 *
 *		  - decide what happened and tell the other end with a
 *		    two letter token.
 *
 *		There is no acknowledgement per block.  The remote looks
 *		at the token and sends the whole file again if it wants.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
)

// Tokens written back to the other end.  No newline after any of them.
const (
	TOKEN_NO    = "NO!"    /* Bad invocation.  Nothing will be transferred. */
	TOKEN_READY = "READY!" /* Go ahead. */
)

type RcvMode int

const (
	RCV_MODE_SINGLE RcvMode = iota /* One file, name given on the command line. */
	RCV_MODE_BATCH                 /* N files, each with its own name and digest. */
)

func (m RcvMode) String() string {
	switch m {
	case RCV_MODE_SINGLE:
		return "single"
	case RCV_MODE_BATCH:
		return "batch"
	default:
		return fmt.Sprintf("RcvMode(%d)", int(m))
	}
}

type Outcome int

const (
	OUTCOME_OK                   Outcome = iota /* All good. */
	OUTCOME_SIZE_MISMATCH                       /* E0: fewer (or more) bytes than the header said. */
	OUTCOME_CROSS_CHECK_MISMATCH                /* E1: size differs from the one on our command line. */
	OUTCOME_DIGEST_MISMATCH                     /* E2: bytes on disk don't match the digest. */
)

var outcome_token = map[Outcome]string{
	OUTCOME_OK:                   "OK",
	OUTCOME_SIZE_MISMATCH:        "E0",
	OUTCOME_CROSS_CHECK_MISMATCH: "E1",
	OUTCOME_DIGEST_MISMATCH:      "E2",
}

// Token is what goes on the wire.
func (o Outcome) Token() string {
	if t, ok := outcome_token[o]; ok {
		return t
	}

	return "E?"
}

func (o Outcome) String() string {
	return o.Token()
}

// Expectation is what a received file is checked against.
type Expectation struct {
	Declared int64 /* Length from the wire header. */

	CrossSize  int64 /* Independent size from the caller, or -1 if none. */
	HaveDigest bool
	Digest     string /* Hex. */
}

/*-------------------------------------------------------------------
 *
 * Name:        rcv_verify
 *
 * Purpose:     Decide the outcome for one file.
 *
 * Inputs:	received	- Bytes actually received.
 *
 *		got		- Digest of what is on disk.
 *
 * Description:	Checks are made in a fixed order and the first failure
 *		wins: size against header, size against the caller's
 *		figure, then digest.
 *
 *--------------------------------------------------------------------*/

func rcv_verify(received int64, got Digest, want Expectation) Outcome {
	if received != want.Declared {
		return OUTCOME_SIZE_MISMATCH
	}

	if want.CrossSize >= 0 && received != want.CrossSize {
		return OUTCOME_CROSS_CHECK_MISMATCH
	}

	if want.HaveDigest && !got.Matches(want.Digest) {
		return OUTCOME_DIGEST_MISMATCH
	}

	return OUTCOME_OK
}

/*-------------------------------------------------------------------
 *
 * Name:        rcv_bytes
 *
 * Purpose:     Copy up to want bytes from the link to w.
 *
 * Inputs:	first		- Longest wait for the first byte.
 *
 *		timeout		- Longest wait for each later byte.
 *
 * Returns:	Number of bytes copied.
 *		The error says why we stopped short: ErrLinkTimeout,
 *		io.EOF, a cancelled context, or trouble writing to w.
 *		A full count always comes with a nil error.
 *
 *--------------------------------------------------------------------*/

const RCV_BUFF_SIZE = 4096

func rcv_bytes(ctx context.Context, lnk Link, w io.Writer, want int64, first, timeout time.Duration) (int64, error) {
	var buf = make([]byte, RCV_BUFF_SIZE)
	var nread int64
	var wait = first

	for nread < want {
		var chunk = buf
		if left := want - nread; left < int64(len(chunk)) {
			chunk = chunk[:left]
		}

		var n, err = lnk.ReadTimeout(ctx, chunk, wait)
		if n > 0 {
			if _, werr := w.Write(chunk[:n]); werr != nil {
				return nread, fmt.Errorf("write: %w", werr)
			}
			nread += int64(n)
			wait = timeout
		}

		if err != nil {
			return nread, err
		}
	}

	return nread, nil
}

// rcv_header reads exactly size bytes of header.
func rcv_header(ctx context.Context, lnk Link, size int, first, timeout time.Duration) ([]byte, error) {
	var hdr bytes.Buffer
	hdr.Grow(size)

	var n, err = rcv_bytes(ctx, lnk, &hdr, int64(size), first, timeout)
	if err != nil {
		return hdr.Bytes(), fmt.Errorf("header: got %d of %d bytes: %w", n, size, err)
	}

	return hdr.Bytes(), nil
}

// link_trouble tells a dead line from an aborted run.
func link_trouble(err error) string {
	switch {
	case errors.Is(err, ErrLinkTimeout):
		return "timeout"
	case errors.Is(err, io.EOF):
		return "closed"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	default:
		return err.Error()
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        RawRcvMain
 *
 * Purpose:     Main program for rawrcv and rawrcvb.
 *
 * Inputs:	args	- Command line, including program name.
 *
 *		mode	- Which one we are.  rawrcv can also be put
 *			  into batch mode with --batch.
 *
 * Returns:	Process exit status.
 *
 * Usage:	rawrcv [options] file [ expected-size expected-md5 ]
 *		rawrcv --batch [options] count
 *		rawrcvb [options] count
 *
 *--------------------------------------------------------------------*/

func RawRcvMain(args []string, mode RcvMode) int {
	return rawrcv_main(args, mode, os.Stdin, os.Stdout, os.Stderr)
}

func rawrcv_main(args []string, mode RcvMode, stdin, stdout, stderr *os.File) int {
	var prog = filepath.Base(args[0])

	var flags = pflag.NewFlagSet(prog, pflag.ContinueOnError)
	flags.SetOutput(stderr)

	var cf = config_flags(flags)
	var batch = flags.BoolP("batch", "b", mode == RCV_MODE_BATCH, "Receive a batch of named files.  The argument is how many.")
	var version = flags.Bool("version", false, "Print version and exit.")
	var help = flags.Bool("help", false, "Display help text.")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "%s - Receive files sent by rawsend.\n", prog)
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Usage:	%s [options] file [ expected-size expected-md5 ]\n", prog)
		fmt.Fprintf(stderr, "	%s --batch [options] count\n", prog)
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "With expected size and digest, replies E0, E1, E2 or OK when done.\n")
		fmt.Fprintf(stderr, "In batch mode every file gets E0, E2 or OK.\n")
		fmt.Fprintf(stderr, "\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprint(stdout, TOKEN_NO)
		return 1
	}

	if *help {
		flags.Usage()
		return 0
	}

	if *version {
		printVersion(stderr, prog)
		return 0
	}

	if *batch {
		mode = RCV_MODE_BATCH
	}

	var cfg, cfgErr = config_from_flags(flags, cf)
	if cfgErr != nil {
		fmt.Fprintf(stderr, "%s: %s\n", prog, cfgErr)
		fmt.Fprint(stdout, TOKEN_NO)
		return 1
	}

	diag_init(prog, cfg.Debug)
	diag.Debug("starting", "mode", mode, "timeout", cfg.ByteTimeout)

	var ctx, cancel = link_context()
	defer cancel()

	var clog = commlog_new(cfg.CommLog, cfg.SyslogTag)
	defer clog.Close()

	var lnk, linkErr = link_open(ctx, cfg, stdin, stdout)
	if linkErr != nil {
		diag.Error("can't open link", "err", linkErr)
		fmt.Fprint(stdout, TOKEN_NO)
		return 1
	}
	defer lnk.Close()

	switch mode {
	case RCV_MODE_BATCH:
		return rawrcv_batch(ctx, cfg, clog, lnk, flags.Args())
	default:
		return rawrcv_single(ctx, cfg, clog, lnk, flags.Args())
	}
}
