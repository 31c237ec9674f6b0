package main

import (
	"os"

	"github.com/hellconnon/llvm-flow/cmd/llvmflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
