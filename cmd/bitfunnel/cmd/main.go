// Package cmd implements the bitfunnel CLI's subcommands (spec §6):
// statistics, termtable, and repl.
package cmd

import (
	"log"

	"v.io/x/lib/cmdline"
)

// Run parses os.Args and dispatches to the matching subcommand.
func Run() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bitfunnel",
			Short:    "Build and query BitFunnel signature-file indexes",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdStatistics(),
				newCmdTermTable(),
				newCmdRepl(),
			},
		})
}
