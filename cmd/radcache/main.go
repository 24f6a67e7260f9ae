// Command radcache computes and caches radiomics features in a SQLite store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/radcache/internal/cli"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.GetExitCode(err)
	}
	return 0
}
