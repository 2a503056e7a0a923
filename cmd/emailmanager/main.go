package main

import (
	"fmt"
	"os"

	"EmailManager/cmd/emailmanager/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
