package main

import (
	"os"

	"github.com/simeonradivoev/electron-dam-sub000/internal/damcli"
)

func main() {
	if err := damcli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
