package main

import "github.com/iksnae/leby/cmd"

func main() {
	cmd.Execute()
}
