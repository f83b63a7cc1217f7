package config_test

import (
	"fmt"

	"github.com/wonny/aegis-risklab/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	// Access configuration values
	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Alpha: %.2f\n", cfg.Risk.Alpha)
	fmt.Printf("Window: %d\n", cfg.Risk.Window)
	fmt.Printf("Modes: %v\n", cfg.Risk.Modes)
}
