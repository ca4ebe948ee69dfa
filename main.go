package main

import (
	"log"

	"golang-options/cmd"

	_ "time/tzdata"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("could not start application: %v", err)
	}
}
