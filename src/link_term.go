package rawxfer

/*------------------------------------------------------------------
 *
 * Purpose:   	Link over a named serial port.
 *
 * Description:	For running on the shore side with the modem attached
 *		directly instead of through a login session.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pkg/term"
)

// VTIME granularity is a tenth of a second and the longest wait is 25.5 s,
// so reads are done in short pieces and the total is counted here.
const TERM_READ_SLICE = 200 * time.Millisecond

// How long to sleep between checks of the output queue while draining.
const TERM_DRAIN_POLL = 10 * time.Millisecond

type termLink struct {
	name    string
	t       *term.Term
	control io.Writer
}

/*-------------------------------------------------------------------
 *
 * Name:	term_link_open
 *
 * Purpose:	Open serial port.
 *
 * Inputs:	devicename	- Usually /dev/tty...
 *				  Could be /dev/rfcomm0 for Bluetooth.
 *
 *		baud		- Speed.  1200, 4800, 9600 bps, etc.
 *				  If 0, leave it alone.
 *
 *		control		- Where a sender reports READY! or NO!.
 *
 * Description:	The port is put into raw mode at open time.  The mode
 *		it had before is remembered by the term package and put
 *		back by the restore function from SetRaw.
 *
 *---------------------------------------------------------------*/

func term_link_open(devicename string, baud int, control io.Writer) (*termLink, error) {
	var options = []func(*term.Term) error{term.RawMode, term.ReadTimeout(TERM_READ_SLICE)}

	switch baud {
	case 0: /* Leave it alone. */
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
		options = append(options, term.Speed(baud))
	default:
		return nil, fmt.Errorf("serial port %s: unsupported speed %d", devicename, baud)
	}

	var t, err = term.Open(devicename, options...)
	if err != nil {
		return nil, fmt.Errorf("could not open serial port %s: %w", devicename, err)
	}

	return &termLink{name: devicename, t: t, control: control}, nil
}

func (l *termLink) Write(p []byte) (int, error) {
	return l.t.Write(p)
}

func (l *termLink) ReadTimeout(ctx context.Context, p []byte, timeout time.Duration) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var deadline = time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		if time.Until(deadline) <= 0 {
			return 0, ErrLinkTimeout
		}

		// With VMIN=0 a quiet line comes back as zero bytes, which
		// the term package reports as EOF.  Just means wait more.
		var n, err = l.t.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
	}
}

func (l *termLink) Drain() error {
	for {
		var queued, err = l.t.Buffered()
		if err != nil {
			return fmt.Errorf("serial port %s: %w", l.name, err)
		}
		if queued == 0 {
			return nil
		}
		SLEEP_MS(int(TERM_DRAIN_POLL / time.Millisecond))
	}
}

// SetRaw has nothing to do since the port was opened raw.
func (l *termLink) SetRaw(_ RawMode) (func() error, error) {
	return l.t.Restore, nil
}

// Close puts the port back the way we found it, even if SetRaw was
// never called.
func (l *termLink) Control() io.Writer {
	return l.control
}

func (l *termLink) Close() error {
	var restoreErr = l.t.Restore()
	return errors.Join(restoreErr, l.t.Close())
}
