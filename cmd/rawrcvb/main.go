/* Receive a batch of named files sent by rawsend --batch */
package main

import (
	"os"

	rawxfer "github.com/doismellburning/rawxfer/src"
)

func main() {
	os.Exit(rawxfer.RawRcvMain(os.Args, rawxfer.RCV_MODE_BATCH))
}
