package main

import (
	"os"

	"chrootctl/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
