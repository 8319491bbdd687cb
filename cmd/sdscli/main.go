package main

import (
	"github.com/robotalks/sds011.go/pkg/cli/sh"

	_ "github.com/robotalks/sds011.go/pkg/cli/cmds/sensor"
)

//go-build: CGO_ENABLED=0

func init() {
	sh.SetupFlags()
}

func main() {
	sh.Main()
}
