// Command hashkey prints the bcrypt hash of a hardware device key, for use as
// HARDWARE_KEY_HASH.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nekogravitycat/parking-booking-backend/internal/auth"
)

func main() {
	cost := flag.Int("cost", 0, "bcrypt cost (0 uses the default)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hashkey [-cost N] <device-key>")
		os.Exit(2)
	}

	hash, err := auth.HashKey(flag.Arg(0), *cost)
	if err != nil {
		log.Fatalf("failed to hash key: %v", err)
	}
	fmt.Println(hash)
}
