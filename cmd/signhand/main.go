package main

import "github.com/jmcleod/signhand/cmd/signhand/cmd"

func main() {
	cmd.Execute()
}
