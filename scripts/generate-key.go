// Package main is a development utility for generating a JWT signing secret
// for the portal. It prints a 256-bit random value in base64url plus the
// export line for SUP_AUTH_JWT_SECRET, so developers can bootstrap a local
// environment without inventing weak secrets. Do not share generated secrets
// between environments — rotate them per deployment.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
)

func main() {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		log.Fatal(err)
	}

	secret := base64.RawURLEncoding.EncodeToString(randomBytes)

	fmt.Println("==========================================================")
	fmt.Println("JWT Secret Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nSecret: %s\n", secret)
	fmt.Println("\n==========================================================")
	fmt.Println("Environment:")
	fmt.Println("==========================================================")
	fmt.Printf("\nexport SUP_AUTH_JWT_SECRET=%s\n", secret)
	fmt.Println("\n==========================================================")
}
