package main

import "github.com/filipviz/juicy-reimburser/cmd"

func main() {
	cmd.Execute()
}
