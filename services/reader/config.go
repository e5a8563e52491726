// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// readerConfigFile is the per-project config file name, looked up at the
// analysis root.
const readerConfigFile = "reader.config.yaml"

var configValidator = validator.New()

// ReaderConfig holds user-provided overrides for one analysis run.
//
// Description:
//
//	Loaded from <projectRoot>/reader.config.yaml. All fields are optional.
//	A missing config file is not an error (zero-config works out of the
//	box); a file that exists but fails to parse or validate is.
//
// Thread Safety: Safe for concurrent reads after construction.
type ReaderConfig struct {
	// ExcludeDirs adds directory names to the discovery exclude set.
	// Example: ["generated", "migrations"]
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// SkipPatterns replaces the flow tracer's default test-file skip
	// patterns. Example: ["test_", "_test", "spec_"]
	SkipPatterns []string `yaml:"skip_patterns"`

	// Parallelism bounds the parse worker pool. Zero means GOMAXPROCS.
	Parallelism int `yaml:"parallelism" validate:"min=0"`

	// TopExternal overrides the ranked external package list length.
	// Zero means the package default.
	TopExternal int `yaml:"top_external" validate:"min=0"`

	// TopFan overrides the fan-in/fan-out list lengths. Zero means the
	// package default.
	TopFan int `yaml:"top_fan" validate:"min=0"`

	// FlowMaxDepth is the default flow trace depth when a request does
	// not specify one. Zero means the package default.
	FlowMaxDepth int `yaml:"flow_max_depth" validate:"min=0"`
}

// LoadReaderConfig reads reader.config.yaml from the project root.
//
// Description:
//
//	Reads, parses and validates the reader config file. If the project
//	root is empty or the file does not exist, returns an empty config
//	with no error. Only returns an error if the file exists but cannot
//	be parsed or carries invalid values.
//
// Inputs:
//
//	projectRoot - Absolute path to the project root. May be empty.
//
// Outputs:
//
//	ReaderConfig - The parsed config, or empty config if file is missing.
//	error - Non-nil only if the file exists but is invalid.
//
// Thread Safety: Safe for concurrent use (stateless function).
func LoadReaderConfig(projectRoot string) (ReaderConfig, error) {
	if projectRoot == "" {
		return ReaderConfig{}, nil
	}

	configPath := filepath.Join(projectRoot, readerConfigFile)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ReaderConfig{}, nil
		}
		return ReaderConfig{}, fmt.Errorf("reading %s: %w", readerConfigFile, err)
	}

	var config ReaderConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return ReaderConfig{}, fmt.Errorf("parsing %s: %w", readerConfigFile, err)
	}
	if err := configValidator.Struct(&config); err != nil {
		return ReaderConfig{}, fmt.Errorf("validating %s: %w", readerConfigFile, err)
	}

	return config, nil
}
