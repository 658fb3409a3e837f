package rawxfer

/*------------------------------------------------------------------
 *
 * Purpose:   	Send side of the raw transfer protocol.
 *
 * Description:	Single file: a four byte length, big endian, then the
 *		file, written a chunk at a time and waiting for each
 *		chunk to actually leave before writing the next.  The
 *		modems have small buffers and lose data if overrun.
 *
 *		Batch: for each file a 52 byte header with its name and
 *		digest, then the file, then wait for the receiver's
 *		verdict.  No retries here; whoever runs us looks at the
 *		exit status and the log.
 *
 *		READY! and NO! are for whoever runs us, not the
 *		receiver.  They go to the link's control output.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/pflag"
)

// Replies the batch sender waits for.  "NO" is the start of NO!.
var reply_tokens = []string{"OK", "E0", "E1", "E2", "NO"}

/*-------------------------------------------------------------------
 *
 * Name:        send_payload
 *
 * Purpose:     Write exactly size bytes from r to the link.
 *
 * Inputs:	chunk		- Bytes per write.  We drain after each.
 *
 *		progress	- Where to show "N bytes of M", or nil.
 *
 * Returns:	Bytes written.
 *
 * Description:	Never sends more than the header promised, even if
 *		the file grew after we looked at its size.  If it
 *		shrank, the receiver will notice the short count.
 *
 *--------------------------------------------------------------------*/

func send_payload(ctx context.Context, lnk Link, r io.Reader, size int64, chunk int, progress io.Writer) (int64, error) {
	var buf = make([]byte, chunk)
	var lr = io.LimitReader(r, size)
	var sent int64

	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		var n, rerr = io.ReadFull(lr, buf)
		if n > 0 {
			var w, werr = lnk.Write(buf[:n])
			sent += int64(w)
			if werr != nil {
				return sent, fmt.Errorf("write: %w", werr)
			}
			if err := lnk.Drain(); err != nil {
				return sent, fmt.Errorf("drain: %w", err)
			}
			if progress != nil {
				fmt.Fprintf(progress, "%d bytes of %d\r", sent, size)
			}
		}

		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			return sent, nil
		}
		if rerr != nil {
			return sent, fmt.Errorf("read: %w", rerr)
		}
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        await_token
 *
 * Purpose:     Wait for the receiver's verdict on a file.
 *
 * Returns:	"OK", "E0", "E1", "E2" or "NO!".
 *
 * Description:	Other bytes can be waiting on the return path, the
 *		receiver's READY! for one.  We slide a two byte window
 *		along and stop at the first token.
 *
 *--------------------------------------------------------------------*/

func await_token(ctx context.Context, lnk Link, timeout time.Duration) (string, error) {
	var window [2]byte
	var have = 0
	var b [1]byte

	for {
		var n, err = lnk.ReadTimeout(ctx, b[:], timeout)
		if err != nil {
			return "", err
		}
		if n == 0 {
			continue
		}

		window[0], window[1] = window[1], b[0]
		have++

		if have < 2 {
			continue
		}

		var s = string(window[:])
		if slices.Contains(reply_tokens, s) {
			if s == "NO" {
				return TOKEN_NO, nil
			}
			return s, nil
		}
	}
}

// raw_send_mode enters raw mode for sending and returns the way back out.
func raw_send_mode(lnk Link) func() {
	var restore, err = lnk.SetRaw(RAW_SEND)
	if err != nil {
		diag.Warn("could not set raw mode", "err", err)
	}

	return func() {
		if err := restore(); err != nil {
			diag.Warn("could not restore terminal", "err", err)
		}
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        rawsend_single
 *
 * Purpose:     Send one file, length header first.
 *
 * Inputs:	path		- File to send.
 *
 *		progress	- Verbose output, or nil.
 *
 * Returns:	Exit status.  1 if the file can't be sent at all or
 *		the link failed part way.
 *
 *--------------------------------------------------------------------*/

func rawsend_single(ctx context.Context, cfg *Config, clog *CommLog, lnk Link, path string, progress io.Writer) int {
	var fp, openErr = os.Open(path)
	if openErr != nil {
		diag.Error("can't open", "err", openErr)
		control_send_token(lnk, TOKEN_NO)
		return 1
	}
	defer fp.Close()

	var st, statErr = fp.Stat()
	if statErr != nil || !st.Mode().IsRegular() || st.Size() > MAX_FRAME_SIZE {
		diag.Error("can't send", "file", path, "err", statErr, "regular", st != nil && st.Mode().IsRegular())
		control_send_token(lnk, TOKEN_NO)
		return 1
	}

	var size = st.Size()

	control_send_token(lnk, TOKEN_READY)

	if progress != nil {
		fmt.Fprintf(progress, "Sending %d bytes of %s\r\n", size, path)
	}
	clog.Printf("Sending %d bytes of %s", size, path)

	var restore = raw_send_mode(lnk)
	defer restore()

	var start = time.Now()

	var sent, err = send_header(lnk, size_header_encode(uint32(size)))
	if err == nil {
		sent, err = send_payload(ctx, lnk, fp, size, cfg.ChunkSize, progress)
	}

	var rate = bytes_per_second(sent, time.Since(start))

	if progress != nil {
		fmt.Fprintf(progress, "\nComplete %f bytes/sec\r\n", rate)
		clog.Printf("Sent %d bytes of %s (%.1f Bps)", sent, path, rate)
	} else {
		clog.Printf("Sent %d bytes of %s", sent, path)
	}

	if err != nil {
		diag.Error("transfer failed", "file", path, "err", err)
		return 1
	}

	return 0
}

// send_header writes a frame header and waits for it to go.
// The count returned is of payload bytes, so always zero.
func send_header(lnk Link, hdr []byte) (int64, error) {
	if _, err := lnk.Write(hdr); err != nil {
		return 0, fmt.Errorf("header: %w", err)
	}
	if err := lnk.Drain(); err != nil {
		return 0, fmt.Errorf("header drain: %w", err)
	}

	return 0, nil
}

type batchItem struct {
	path string
	name string /* What goes in the header. */
	fp   *os.File
	size int64
	sum  Digest
}

// batch_item_open checks a file can be sent in a batch and digests it.
func batch_item_open(path string) (*batchItem, error) {
	var name = filepath.Base(path)
	if len(name) > BATCH_NAME_MAX {
		return nil, fmt.Errorf("%s: name longer than %d characters", path, BATCH_NAME_MAX)
	}
	if sanitize_filename(name) != name {
		return nil, fmt.Errorf("%s: name has characters the receiver would drop", path)
	}

	var fp, err = os.Open(path)
	if err != nil {
		return nil, err
	}

	var st, statErr = fp.Stat()
	if statErr != nil {
		fp.Close()
		return nil, statErr
	}
	if !st.Mode().IsRegular() || st.Size() > MAX_FRAME_SIZE {
		fp.Close()
		return nil, fmt.Errorf("%s: not a regular file of at most %d bytes", path, int64(MAX_FRAME_SIZE))
	}

	var sum, n, digestErr = digest_reader(io.LimitReader(fp, st.Size()))
	if digestErr == nil && n != st.Size() {
		digestErr = fmt.Errorf("%s: changed size while reading", path)
	}
	if digestErr == nil {
		_, digestErr = fp.Seek(0, io.SeekStart)
	}
	if digestErr != nil {
		fp.Close()
		return nil, digestErr
	}

	return &batchItem{path: path, name: name, fp: fp, size: st.Size(), sum: sum}, nil
}

/*-------------------------------------------------------------------
 *
 * Name:        rawsend_batch
 *
 * Purpose:     Send files to a batch receiver.
 *
 * Returns:	Exit status.
 *		0 when every file got OK.
 *		1 if a file can't be sent at all (NO!), or the link
 *		  failed while writing.
 *		2 if any file got something other than OK, or no
 *		  verdict came back.
 *
 *--------------------------------------------------------------------*/

func rawsend_batch(ctx context.Context, cfg *Config, clog *CommLog, lnk Link, paths []string, progress io.Writer) int {
	if len(paths) == 0 {
		diag.Error("no files to send")
		control_send_token(lnk, TOKEN_NO)
		return 1
	}

	var items []*batchItem
	defer func() {
		for _, it := range items {
			it.fp.Close()
		}
	}()

	for _, path := range paths {
		var it, err = batch_item_open(path)
		if err != nil {
			diag.Error("can't send", "err", err)
			control_send_token(lnk, TOKEN_NO)
			return 1
		}
		items = append(items, it)
	}

	control_send_token(lnk, TOKEN_READY)

	var restore = raw_send_mode(lnk)
	defer restore()

	var failed = 0

	for _, it := range items {
		var hdr, hdrErr = batch_header_encode(BatchHeader{Size: uint32(it.size), Name: it.name, Digest: it.sum.String()})
		if hdrErr != nil {
			diag.Error("header", "file", it.path, "err", hdrErr)
			return 1
		}

		clog.Printf("Sending %d bytes of %s", it.size, it.name)

		var sent, err = send_header(lnk, hdr)
		if err == nil {
			sent, err = send_payload(ctx, lnk, it.fp, it.size, cfg.ChunkSize, progress)
		}
		if err != nil {
			clog.Printf("Sent %d bytes of %s", sent, it.name)
			diag.Error("transfer failed", "file", it.path, "err", err)
			return 1
		}

		var token, tokenErr = await_token(ctx, lnk, cfg.ByteTimeout)
		if tokenErr != nil {
			clog.Printf("Sent %d bytes of %s: no reply (%s)", sent, it.name, link_trouble(tokenErr))
			return 2
		}

		clog.Printf("Sent %d bytes of %s: %s", sent, it.name, token)

		if token == TOKEN_NO {
			return 2
		}
		if token != OUTCOME_OK.Token() {
			failed++
		}
	}

	return IfThenElse(failed > 0, 2, 0)
}

/*-------------------------------------------------------------------
 *
 * Name:        RawSendMain
 *
 * Purpose:     Main program for rawsend.
 *
 * Usage:	rawsend [-v] [options] file
 *		rawsend --batch [-v] [options] file ...
 *
 *--------------------------------------------------------------------*/

func RawSendMain(args []string) int {
	return rawsend_main(args, os.Stdin, os.Stdout, os.Stderr)
}

func rawsend_main(args []string, stdin, stdout, stderr *os.File) int {
	var prog = filepath.Base(args[0])

	var flags = pflag.NewFlagSet(prog, pflag.ContinueOnError)
	flags.SetOutput(stderr)

	var cf = config_flags(flags)
	var verbose = flags.BoolP("verbose", "v", false, "Show progress on stderr.")
	var batch = flags.BoolP("batch", "b", false, "Send several files to rawrcvb, waiting for a verdict on each.")
	var version = flags.Bool("version", false, "Print version and exit.")
	var help = flags.Bool("help", false, "Display help text.")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "%s - Send a file over a raw serial or modem link.\n", prog)
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Usage:	%s [options] file\n", prog)
		fmt.Fprintf(stderr, "	%s --batch [options] file ...\n", prog)
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

	var cfg, cfgErr = config_from_flags(flags, cf)
	if cfgErr != nil {
		fmt.Fprintf(stderr, "%s: %s\n", prog, cfgErr)
		fmt.Fprint(stdout, TOKEN_NO)
		return 1
	}

	diag_init(prog, cfg.Debug)

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

	var progress io.Writer
	if *verbose {
		progress = stderr
	}

	if *batch {
		return rawsend_batch(ctx, cfg, clog, lnk, flags.Args(), progress)
	}

	if flags.NArg() != 1 {
		diag.Error("need exactly one file name")
		control_send_token(lnk, TOKEN_NO)
		return 1
	}

	return rawsend_single(ctx, cfg, clog, lnk, flags.Arg(0), progress)
}
