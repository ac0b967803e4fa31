package main

import "github.com/MeKo-Tech/patternpreview/internal/cmd"

func main() {
	cmd.Execute()
}
