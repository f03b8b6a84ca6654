package main

import (
	"os"

	"github.com/platformeng/infrarepo/cmd"
)

func main() {
	if err := cmd.Main(); err != nil {
		os.Exit(1)
	}
}
