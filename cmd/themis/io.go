package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// readInput decodes a JSON or YAML file into v; "-" reads JSON from stdin.
// YAML is converted to JSON first so the json struct tags apply to both.
func readInput(cmd *cobra.Command, path string, v any) error {
	if path == "" {
		return fmt.Errorf("--input is required")
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return fmt.Errorf("converting %s: %w", path, err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// write renders v as indented JSON or as YAML with the same field names.
func (a *app) write(cmd *cobra.Command, v any) error {
	out := cmd.OutOrStdout()
	if a.output != "yaml" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// parseWeights turns key=value flag pairs into criterion weights.
func parseWeights(pairs map[string]string) (map[string]float64, error) {
	weights := make(map[string]float64, len(pairs))
	for k, v := range pairs {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("weight for %s: %w", k, err)
		}
		weights[k] = f
	}
	return weights, nil
}
