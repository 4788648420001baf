package main

import "tripwise-backend/cmd"

func main() {
	cmd.Run()
}
