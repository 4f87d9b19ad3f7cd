package main

import (
	"github.com/ssargent/arenabuf/cmd/arenabuf/cmd"
)

func main() {
	cmd.Execute()
}
