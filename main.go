package main

import "wpdeploy/cmd"

func main() {
	cmd.Execute()
}
