package main

import (
	"flag"
	"log"

	"condor-raat/core/appbootstrap"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML config file")
	flag.Parse()

	if err := appbootstrap.Run(*configPath); err != nil {
		log.Fatalf("condor: %v", err)
	}
}
