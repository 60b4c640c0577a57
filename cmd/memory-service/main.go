package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"

	"github.com/kennyhq/kenny-memory/memoryservice"
)

func main() {
	// Optional build-target flag override (local | cloud)
	buildTarget := flag.String("build-target", "", "Override MEMORY_BUILD_TARGET (local, cloud)")
	flag.Parse()

	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	if *buildTarget != "" {
		_ = os.Setenv("MEMORY_BUILD_TARGET", *buildTarget)
	}

	if err := memoryservice.Run(); err != nil {
		os.Exit(1)
	}
}
