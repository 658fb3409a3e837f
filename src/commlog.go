package rawxfer

/*------------------------------------------------------------------
 *
 * Purpose:	Keep a record of each transfer in the session log.
 *
 * Description:	One line per event, appended to comm.log in the
 *		current directory, which on the shore side is the
 *		mission directory.  The shore processing scans this file
 *		for the "Sending", "Sent", "Receiving" and "Received"
 *		lines, so their wording must not change.
 *
 *		The file is opened and closed for every line.  Sender
 *		and receiver can both be writing during one session.
 *
 *		If comm.log can't be opened we fall back to syslog.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"log/syslog"
	"os"
	"time"

	"github.com/lestrrat-go/strftime"
)

const COMMLOG_TIME_FORMAT = "%Y-%m-%dT%H:%M:%SZ"

var commlog_time_format, _ = strftime.New(COMMLOG_TIME_FORMAT)

type CommLog struct {
	path string /* Log file name.  Empty string sends everything to syslog. */
	tag  string /* Syslog tag. */
	user string

	now      func() time.Time
	fallback func(msg string) /* When the file can't be opened. */

	// Lazily opened.
	syslog *syslog.Writer
}

/*------------------------------------------------------------------
 *
 * Function:	commlog_new
 *
 * Inputs:	path	- Log file name, normally "comm.log".
 *
 *		tag	- Tag used if we end up in syslog.
 *
 *------------------------------------------------------------------*/

func commlog_new(path string, tag string) *CommLog {
	var user = os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}

	var c = &CommLog{
		path: path,
		tag:  tag,
		user: user,
		now:  time.Now,
	}
	c.fallback = c.to_syslog

	return c
}

// Printf writes one record.  Failing to log never fails a transfer.
func (c *CommLog) Printf(format string, a ...any) {
	var msg = fmt.Sprintf(format, a...)

	diag.Info(msg)

	if c.path != "" {
		var fp, err = os.OpenFile(c.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if err == nil {
			var stamp = c.now().UTC()
			fmt.Fprintf(fp, "%s [%s] %s\n", commlog_format_time(stamp), c.user, msg)
			fp.Close()
			return
		}
		diag.Debug("comm log unavailable, using syslog", "path", c.path, "err", err)
	}

	c.fallback(msg)
}

func (c *CommLog) to_syslog(msg string) {
	if c.syslog == nil {
		var w, err = syslog.New(syslog.LOG_INFO|syslog.LOG_USER, c.tag)
		if err != nil {
			diag.Warn("no comm log and no syslog", "err", err, "msg", msg)
			return
		}
		c.syslog = w
	}

	c.syslog.Info(fmt.Sprintf("[%s] %s", c.user, msg)) //nolint:errcheck
}

func (c *CommLog) Close() {
	if c.syslog != nil {
		c.syslog.Close()
		c.syslog = nil
	}
}

func commlog_format_time(t time.Time) string {
	if commlog_time_format == nil {
		return t.Format("2006-01-02T15:04:05Z")
	}

	return commlog_time_format.FormatString(t)
}
