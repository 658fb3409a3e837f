package rawxfer

/*------------------------------------------------------------------
 *
 * Purpose:	Decide which batch files count towards the total.
 *
 * Description:	The sender retries a file by sending it again, under
 *		the same name, straight after a failure.  If a good copy
 *		is followed by another copy of the same name, because
 *		the OK was lost on the way back, we must not count it
 *		twice or we would stop one file early.
 *
 *		So a file counts only when it was received good and its
 *		name differs from the last good one.  Failures don't
 *		change what "last good" is.
 *
 *		The same name can still count more than once if some
 *		other file came in between.  That is the sender's
 *		business.
 *
 *------------------------------------------------------------------*/

type dedupe_s struct {
	last  string /* Name of most recent good file.  Empty before the first. */
	count int    /* Files counted so far. */
}

func dedupe_init() *dedupe_s {
	return new(dedupe_s)
}

/*------------------------------------------------------------------
 *
 * Name:	dedupe_remember
 *
 * Purpose:	Note a file received good.
 *
 * Returns:	True if it counts, false for a repeat of the last one.
 *
 *------------------------------------------------------------------*/

func (d *dedupe_s) dedupe_remember(name string) bool {
	if d.count > 0 && name == d.last {
		return false
	}

	d.last = name
	d.count++

	return true
}

func (d *dedupe_s) dedupe_count() int {
	return d.count
}
