package main

import (
	"github.com/ssargent/samplestore/cmd/samplestore/cmd"
	"github.com/ssargent/samplestore/pkg/di"
)

func main() {
	container := di.NewContainer()
	cmd.SetContainer(container)

	cmd.Execute()
}
