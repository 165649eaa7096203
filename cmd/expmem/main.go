// Command expmem manages a categorized experience memory store.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if present; API keys usually live there.
	_ = godotenv.Load()

	a := &app{}
	if err := a.execute(newRootCmd(a)); err != nil {
		fmt.Fprintln(os.Stderr, "expmem:", err)
		os.Exit(1)
	}
}
