package main

import (
	"github.com/ssargent/mb2/cmd/mb2/cmd"
	"github.com/ssargent/mb2/pkg/di"
)

func main() {
	// Initialize dependency injection container
	container := di.NewContainer()

	// Inject dependencies into cmd package
	cmd.SetContainer(container)

	cmd.Execute()
}
