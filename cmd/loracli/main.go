package main

import (
	"github.com/robotalks/lora.go/pkg/cli/sh"
	"github.com/robotalks/lora.go/pkg/l1/env"

	_ "github.com/robotalks/lora.go/pkg/cli/cmds/lora"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
