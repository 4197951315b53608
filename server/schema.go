package server

import (
	"embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	session "github.com/sessionkeys/starknet-session/go"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// requestSchemas holds the compiled request body schemas
type requestSchemas struct {
	typedData  map[session.Flow]*gojsonschema.Schema
	redemption map[session.Flow]*gojsonschema.Schema
	hints      *gojsonschema.Schema
}

func loadSchemas() (*requestSchemas, error) {
	compile := func(name string) (*gojsonschema.Schema, error) {
		defs, err := schemaFS.ReadFile("schemas/defs.json")
		if err != nil {
			return nil, err
		}
		root, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, err
		}
		loader := gojsonschema.NewSchemaLoader()
		if err := loader.AddSchemas(gojsonschema.NewBytesLoader(defs)); err != nil {
			return nil, fmt.Errorf("failed to load schema definitions: %w", err)
		}
		schema, err := loader.Compile(gojsonschema.NewBytesLoader(root))
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s: %w", name, err)
		}
		return schema, nil
	}

	s := &requestSchemas{
		typedData:  map[session.Flow]*gojsonschema.Schema{},
		redemption: map[session.Flow]*gojsonschema.Schema{},
	}
	for flow, suffix := range map[session.Flow]string{
		session.FlowSession:      "session",
		session.FlowGasSponsored: "gas_sponsored",
	} {
		typedData, err := compile("typed_data_" + suffix + ".json")
		if err != nil {
			return nil, err
		}
		redemption, err := compile("redemption_" + suffix + ".json")
		if err != nil {
			return nil, err
		}
		s.typedData[flow] = typedData
		s.redemption[flow] = redemption
	}

	hints, err := compile("hints.json")
	if err != nil {
		return nil, err
	}
	s.hints = hints
	return s, nil
}

// validateBody checks body against schema, returning a coded error listing every violation.
func validateBody(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return session.NewSessionError(session.ErrCodeInvalidRequest, "request body is not valid JSON", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if result.Valid() {
		return nil
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return session.NewSessionError(session.ErrCodeInvalidRequest, "request body does not match schema", map[string]interface{}{
		"errors": errs,
	})
}
