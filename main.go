package main

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"appshell/internal/bootstrap"
)

//go:embed all:frontend
var appAssets embed.FS

func main() {
	assets, err := fs.Sub(appAssets, "frontend")
	if err != nil {
		log.Fatalf("load frontend assets: %v", err)
	}

	app, err := bootstrap.NewWithAssets(assets, os.Getenv("APPSHELL_CONFIG"))
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		if errors.Is(err, bootstrap.ErrAlreadyRunning) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		log.Fatalf("run app: %v", err)
	}
}
