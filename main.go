// Package main is the entry point for the bramble display daemon and its CLI.
package main

import (
	"github.com/mi-skam/bramble/cmd"
	"github.com/mi-skam/bramble/config"
	"github.com/mi-skam/bramble/log"
	"github.com/samber/lo"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	cmd.Execute()
}
