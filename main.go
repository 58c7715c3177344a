package main

import "survey-capture/cmd"

func main() {
	cmd.Execute()
}
