package main

import "github.com/InverseCodex/agrivision-website-v2/cmd"

func main() {
	cmd.Run()
}
