package main

import "github.com/OpenTraceLab/OpenTraceRCX/cmd/rcx/cmd"

func main() {
	cmd.Execute()
}
