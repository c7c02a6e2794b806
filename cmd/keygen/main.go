package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

func main() {
	size := 32
	if len(os.Args) > 1 {
		if _, err := fmt.Sscanf(os.Args[1], "%d", &size); err != nil || size < 16 {
			fmt.Println("Usage: go run cmd/keygen/main.go [bytes]")
			fmt.Println("Generates a random trigger token for server.auth_token (at least 16 bytes)")
			os.Exit(1)
		}
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read random bytes: %v\n", err)
		os.Exit(1)
	}
	token := hex.EncodeToString(buf)

	fmt.Printf("Trigger token: %s\n", token)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("  server:\n")
	fmt.Printf("    auth_token: \"%s\"\n", token)
	fmt.Println("\nand send it as \"Authorization: Bearer <token>\" when triggering actions.")
}
