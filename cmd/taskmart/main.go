package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/andymarkow/taskmart/internal/app"
	"github.com/andymarkow/taskmart/internal/auth"
)

func main() {
	// taskmart hash-secret <secret> prints the bcrypt hash for a client secret.
	if len(os.Args) == 3 && os.Args[1] == "hash-secret" {
		hash, err := auth.HashSecret(os.Args[2])
		if err != nil {
			log.Fatalf("auth.HashSecret: %v", err)
		}

		fmt.Println(hash) //nolint:forbidigo

		return
	}

	ctx := context.Background()

	application, err := app.New(ctx, os.Args[1:])
	if err != nil {
		log.Fatalf("app.New: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("app.Run: %v", err)
	}
}
