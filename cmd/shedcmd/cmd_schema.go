package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"shedcmd/internal/config"
)

func newSchemaCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			data, err := configSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, string(data)) //nolint:errcheck // best-effort stdout
			return nil
		},
	}
}

// configSchema reflects config.Config using its YAML field names.
func configSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		FieldNameTag:   "yaml",
		ExpandedStruct: true,
	}
	s := r.Reflect(&config.Config{})
	s.Title = "shedcmd configuration"
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	return data, nil
}
