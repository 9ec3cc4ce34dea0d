// Command validate checks relay TOML configuration files. With no arguments
// it validates every *.toml file in the configs directory. It checks:
//   - TOML syntax and unknown keys
//   - Port range and non-empty room name
//   - Positive send buffer and message size
//   - Known slow consumer policy
//   - Ngrok settings that cannot work as written
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/squarerelay/config"
)

type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
	Config   config.Config
}

func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	cfg := config.Default()
	if err := config.LoadFile(filePath, &cfg); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.Config = cfg

	if err := cfg.Validate(); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}

	if cfg.Ngrok.Enabled && cfg.Ngrok.AuthToken == "" &&
		os.Getenv("NGROK_AUTHTOKEN") == "" && os.Getenv("NGROK_AUTH_TOKEN") == "" {
		result.Warnings = append(result.Warnings, "ngrok is enabled but no auth token is set; the tunnel will not start")
	}

	if cfg.Ngrok.Domain != "" && !cfg.Ngrok.Enabled {
		result.Warnings = append(result.Warnings, "ngrok.domain is set but ngrok is disabled")
	}

	if !cfg.AllowRoomParam && cfg.Room == config.DefaultRoom {
		result.Warnings = append(result.Warnings, fmt.Sprintf("all clients share room %q", cfg.Room))
	}

	if _, err := os.Stat(cfg.StaticPath); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("static path %s is not readable yet: %v", cfg.StaticPath, err))
	}

	return result
}

func main() {
	files := os.Args[1:]
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join("configs", "*.toml"))
		if err != nil {
			fmt.Printf("Error finding config files: %v\n", err)
			os.Exit(1)
		}
		files = matches
	}

	if len(files) == 0 {
		fmt.Println("No configuration files found")
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			fmt.Printf("  ✓ listens on %s, default room %q, slow consumers: %s\n",
				result.Config.Addr(), result.Config.Room, result.Config.SlowConsumer)
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  ❌ " + err)
			}
		}
		for _, warning := range result.Warnings {
			fmt.Println("  ⚠ " + warning)
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
