package main

import (
	"os"

	"github.com/hugr-lab/gridsource-go/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
