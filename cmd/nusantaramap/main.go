package main

import "github.com/MeKo-Tech/nusantaramap/internal/cmd"

func main() {
	cmd.Execute()
}
