package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	outputJSON string = "json"
	outputYAML string = "yaml"
)

func validateOutputFormat(format string) error {
	if format != outputJSON && format != outputYAML {
		return fmt.Errorf("unknown output format %q (use json or yaml)", format)
	}
	return nil
}

// printValue writes v as indented JSON or as YAML
func printValue(w io.Writer, format string, v any) error {
	switch format {
	case outputYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(v)
	default:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	}
}

// printBody writes a response body, JSON bodies are reformatted and anything else is
// written as is
func printBody(w io.Writer, format string, body []byte) error {
	if len(body) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		_, err = w.Write(body)
		return err
	}
	return printValue(w, format, decoded)
}
