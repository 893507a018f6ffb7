package main

import (
	"os"

	"debsmith/internal/debsmith"
)

func main() {
	os.Exit(debsmith.Main())
}
