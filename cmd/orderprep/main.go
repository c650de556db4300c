package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/phillip-england/orderprep/internal/orderprepcli"
)

func main() {
	if err := orderprepcli.Execute(os.Args[1:]); err != nil {
		if errors.Is(err, orderprepcli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr)
			orderprepcli.PrintUsage(os.Stderr)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
