package main

import "github.com/jsvoboda/memorymap/cmd"

func main() {
	cmd.Execute()
}
