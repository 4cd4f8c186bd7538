package main

import "github.com/MeKo-Tech/grainmatch/internal/cmd"

func main() {
	cmd.Execute()
}
