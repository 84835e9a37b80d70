package main

import (
	"github.com/hsharrison/govrpn/cmd"
)

func main() {
	cmd.Execute()
}
