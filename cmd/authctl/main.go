package main

import (
	"fmt"
	"os"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/tools/authctl"
)

func main() {
	if err := authctl.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
