package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ruslano69/eavsql/cmd/eavctl/commands"
)

func main() {
	if err := commands.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
