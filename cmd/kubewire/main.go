package main

import (
	"os"

	"github.com/kubewire/kubewire/cmd/kubewire/app"
)

func main() {
	if err := app.NewKubewireCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
