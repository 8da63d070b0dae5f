package config_test

import (
	"fmt"
	"log"
	"time"

	"github.com/ajitpratap0/squash/pkg/config"
)

// ExampleDefault demonstrates the default thresholds.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Min rows: %d\n", cfg.Squashing.MinBlockSizeRows)
	fmt.Printf("Min bytes: %d\n", cfg.Squashing.MinBlockSizeBytes)
	fmt.Printf("Max block rows: %d\n", cfg.Formats.MaxBlockRows)

	// Output:
	// Min rows: 65536
	// Min bytes: 268435456
	// Max block rows: 65536
}

// ExampleConfig_Validate shows how to validate a configuration
// before using it.
func ExampleConfig_Validate() {
	cfg := config.Default()
	cfg.Streams = append(cfg.Streams, config.StreamConfig{
		Name:   "events",
		Input:  config.EndpointConfig{Path: "events.jsonl.gz"},
		Output: config.EndpointConfig{Path: "events.parquet"},
	})
	cfg.Pipeline.Timeout = 2 * time.Minute

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("Configuration is valid!")

	// Output:
	// Configuration is valid!
}

// ExampleConfig_passThrough shows that zero thresholds disable squashing.
func ExampleConfig_passThrough() {
	cfg := config.Default()
	cfg.Squashing = config.SquashingConfig{}

	fmt.Printf("Disabled: %v\n", cfg.Squashing.MinBlockSizeRows == 0 && cfg.Squashing.MinBlockSizeBytes == 0)

	// Output:
	// Disabled: true
}
