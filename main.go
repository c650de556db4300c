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
			fmt.Fprintln(os.Stderr, "usage: orderprep setup [--force]")
			fmt.Fprintln(os.Stderr, "       orderprep fetch [--out orders.json]")
			fmt.Fprintln(os.Stderr, "       orderprep validate <file>")
			fmt.Fprintln(os.Stderr, "       orderprep totals|labels|export [--orders file]")
			fmt.Fprintln(os.Stderr, "       orderprep recipes import <file>")
			fmt.Fprintln(os.Stderr, "       orderprep serve")
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
