package main

import "panelbase/cmd"

func main() {
	cmd.Execute()
}
