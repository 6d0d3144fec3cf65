package main

import (
	"log"

	"github.com/thiagokokada/qgit-go/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("qgit-go: %v", err)
	}
}
