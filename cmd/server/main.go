package main

import (
	"fmt"
	"os"

	"hrdesk/internal/app/server"
)

func main() {
	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "hrdesk: %v\n", err)
		os.Exit(1)
	}
}
