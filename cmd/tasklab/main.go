package main

import (
	"github.com/robotalks/rtos.go/pkg/cli/sh"
	"github.com/robotalks/rtos.go/pkg/env"

	_ "github.com/robotalks/rtos.go/pkg/cli/cmds/remote"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
