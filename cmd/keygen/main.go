// Command keygen writes a fresh Ed25519 signing key pair for token issuance.
package main

import (
	"crypto/rand"
	"flag"
	"log"

	"github.com/you/medrecsvc/internal/infrastructure/auth"
)

func main() {
	dir := flag.String("dir", "keys", "directory to write the key pair into")
	force := flag.Bool("force", false, "overwrite an existing key pair")
	flag.Parse()

	kp, err := auth.NewKeyPair(rand.Reader)
	if err != nil {
		log.Fatalf("keygen: %v", err)
	}
	defer kp.Close()

	if err := auth.WriteKeyPair(*dir, kp, *force); err != nil {
		log.Fatalf("keygen: %v", err)
	}
	log.Printf("wrote %s and %s to %s", auth.PrivateKeyFile, auth.PublicKeyFile, *dir)
}
