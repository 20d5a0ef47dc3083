// Command bitfunnel is the BitFunnel CLI (spec §6): `statistics` scans a
// corpus of chunk files into a document-frequency table and related
// artifacts, `termtable` builds one TermTable per shard from those
// artifacts, and `repl` loads a configured index and starts an interactive
// query loop.
package main

import (
	"github.com/bitfunnel/bitfunnel/cmd/bitfunnel/cmd"
)

func main() {
	cmd.Run()
}
