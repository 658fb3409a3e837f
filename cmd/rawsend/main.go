/* Send a file over a raw serial or modem link */
package main

import (
	"os"

	rawxfer "github.com/doismellburning/rawxfer/src"
)

func main() {
	os.Exit(rawxfer.RawSendMain(os.Args))
}
