// Command dittoxfer runs the DittoXfer file transfer server.
//
// Usage:
//
//	dittoxfer [serve] [flags]   start the server (default)
//	dittoxfer init [--force]    write a sample config file
//	dittoxfer worker            worker process of the process pool
//	dittoxfer version
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve", "start":
		err = runServe(args)
	case "init":
		err = runInit(args)
	case "worker":
		err = runWorker(args)
	case "version":
		fmt.Println("dittoxfer", version)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `DittoXfer - concurrent file transfer server

Usage:
  dittoxfer [serve] [flags]   Start the server
  dittoxfer init [--force]    Write a sample configuration file
  dittoxfer worker            Run as a process pool worker (internal)
  dittoxfer version           Print the version

Run 'dittoxfer serve -h' for server flags.
`)
}
