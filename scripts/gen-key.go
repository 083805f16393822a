package main

import (
	"fmt"
	"os"

	"github.com/openclaw/tether-go/internal/util"
)

func main() {
	key, err := util.GenerateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(key)
}
