package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/deploywatch/internal/auth"
	"github.com/tjfontaine/deploywatch/internal/signature"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/keygen admin <api-key>      hash an admin API key for config.yaml")
	fmt.Println("  go run ./cmd/keygen secret               generate a whsec_ webhook signing secret")
	fmt.Println("  go run ./cmd/keygen sign <secret> <file> print signed delivery headers for a payload file")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "admin":
		if len(os.Args) != 3 {
			usage()
		}
		hashAdminKey(os.Args[2])
	case "secret":
		generateSecret()
	case "sign":
		if len(os.Args) != 4 {
			usage()
		}
		if err := signPayload(os.Args[2], os.Args[3]); err != nil {
			fmt.Fprintf(os.Stderr, "sign: %v\n", err)
			os.Exit(1)
		}
	default:
		usage()
	}
}

func hashAdminKey(apiKey string) {
	keyHash := auth.HashAPIKey(apiKey)

	fmt.Printf("API Key: %s\n", apiKey)
	fmt.Printf("SHA-256 Hash: %s\n", keyHash)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("admin:\n")
	fmt.Printf("  api_keys:\n")
	fmt.Printf("    - key_hash: \"%s\"\n", keyHash)
	fmt.Printf("      description: \"Generated key\"\n")
}

func generateSecret() {
	key := make([]byte, 24)
	if _, err := rand.Read(key); err != nil {
		fmt.Fprintf(os.Stderr, "generate secret: %v\n", err)
		os.Exit(1)
	}
	secret := signature.Secret(key)

	fmt.Printf("Webhook secret: %s\n", secret)
	fmt.Println("\nSet it in config.yaml (webhook.secret) or DEPLOYWATCH_WEBHOOK__SECRET,")
	fmt.Println("and register the same value with the email provider.")
}

func signPayload(rawSecret, path string) error {
	secret, err := signature.ParseSecret(rawSecret)
	if err != nil {
		return err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	id := "msg_" + uuid.NewString()
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	fmt.Printf("svix-id: %s\n", id)
	fmt.Printf("svix-timestamp: %s\n", ts)
	fmt.Printf("svix-signature: %s\n", signature.Sign(id, ts, body, secret))
	return nil
}
