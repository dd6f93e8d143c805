// Command generate-schema writes the JSON schema of the DittoXfer
// configuration file, for editor completion and validation.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/dittoxfer/pkg/config"
)

func main() {
	outputFile := "config.schema.json"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	schemaJSON, err := generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outputFile, schemaJSON, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("JSON schema written to %s\n", outputFile)
}

func generate() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		// Config files are decoded by viper through mapstructure tags.
		FieldNameTag: "mapstructure",
		Mapper:       mapDuration,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "DittoXfer Configuration"
	schema.Description = "Configuration schema for the DittoXfer file transfer server"
	schema.Version = "1.0.0"

	return json.MarshalIndent(schema, "", "  ")
}

// mapDuration describes durations the way they are written, e.g. "30s".
func mapDuration(t reflect.Type) *jsonschema.Schema {
	if t != reflect.TypeOf(time.Duration(0)) {
		return nil
	}
	return &jsonschema.Schema{
		Type:    "string",
		Pattern: `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
	}
}
