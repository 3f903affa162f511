// Command keygen prints a fresh ES256 signing key for JWT_SECRET
package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"strings"

	"sintonia/internal/auth"
)

func main() {
	out := flag.String("out", "", "also write the PEM key to this file")
	flag.Parse()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
		os.Exit(1)
	}

	pemKey, err := auth.EncodePrivateKey(privateKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Generated ECDSA P-256 key pair for JWT signing.")
	fmt.Println("\nAdd this to your .env file (newlines escaped):")
	fmt.Printf("JWT_SECRET=%s\n", strings.ReplaceAll(pemKey, "\n", `\n`))

	if *out != "" {
		if err := os.WriteFile(*out, []byte(pemKey), 0600); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write private key file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nPrivate key saved to: %s\n", *out)
	}
}
