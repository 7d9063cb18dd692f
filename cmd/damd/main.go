package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/simeonradivoev/electron-dam-sub000/internal/damd"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:7343", "listen address (tcp)")
	flag.Parse()

	s := damd.NewServer(damd.Options{Listen: *listen})
	if err := s.Run(); err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			_, _ = fmt.Fprintf(os.Stderr, "listen address in use: %s\nTry: -listen 127.0.0.1:7344\n", *listen)
		} else {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
