/* Receive a file sent by rawsend */
package main

import (
	"os"

	rawxfer "github.com/doismellburning/rawxfer/src"
)

func main() {
	os.Exit(rawxfer.RawRcvMain(os.Args, rawxfer.RCV_MODE_SINGLE))
}
