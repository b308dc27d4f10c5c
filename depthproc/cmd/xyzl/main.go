// Package main is the xyzl command, which replays recorded depth and label streams through the
// labelled point cloud node.
package main

import (
	"log"
	"os"
)

func main() {
	if err := NewApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
