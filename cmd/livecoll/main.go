package main

import (
	"fmt"
	"os"

	"github.com/roach88/livecoll/internal/cli"
	"github.com/roach88/livecoll/internal/logging"
)

func main() {
	err := cli.NewRootCommand().Execute()
	_ = logging.Logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
