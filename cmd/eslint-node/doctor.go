package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mattjoyce/eslint-node/internal/config"
	"github.com/mattjoyce/eslint-node/internal/doctor"
	"github.com/mattjoyce/eslint-node/internal/engine"
	"github.com/mattjoyce/eslint-node/internal/nodebin"
)

func runDoctor(args []string) int {
	var projects stringList
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	fs.Var(&projects, "project", "Project directory to check (repeatable)")
	format := fs.String("format", "human", "Output format: human or json")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format (alias for --format json)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *jsonOut {
		*format = "json"
	}
	if *format != "human" && *format != "json" {
		fmt.Fprintf(os.Stderr, "Unknown format %q (want human or json)\n", *format)
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	validator := nodebin.New(nodebin.WithTimeout(cfg.Worker.ValidateTimeout))
	resolver := engine.Resolver{BuiltinPath: cfg.Engine.BuiltinPath}
	result := doctor.New(cfg, validator, resolver, projects...).Validate(context.Background())

	if *format == "json" {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}
