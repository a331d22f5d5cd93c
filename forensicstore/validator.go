// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package forensicstore

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"
	"github.com/tidwall/gjson"
)

//go:embed schema/*.json
var schemaFS embed.FS

// A Validator checks single elements before they are inserted.
type Validator interface {
	Validate(element JSONElement) (flaws []string, err error)
}

// SchemaValidator validates elements against the JSON schema registered
// for their type. Elements of unknown types are accepted.
type SchemaValidator struct {
	schemas map[string]*jsonschema.Schema
}

// NewSchemaValidator loads the built in schemas.
func NewSchemaValidator() (*SchemaValidator, error) {
	v := &SchemaValidator{schemas: map[string]*jsonschema.Schema{}}

	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		content, err := schemaFS.ReadFile(path.Join("schema", entry.Name()))
		if err != nil {
			return nil, err
		}
		if err := v.AddSchema(content); err != nil {
			return nil, errors.Wrapf(err, "invalid schema %s", entry.Name())
		}
	}
	return v, nil
}

// AddSchema registers a schema for the element type named by its title.
func (v *SchemaValidator) AddSchema(content []byte) error {
	title := gjson.GetBytes(content, "title").String()
	if title == "" {
		return errors.New("schema requires a title")
	}

	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(content, schema); err != nil {
		return err
	}
	v.schemas[title] = schema
	return nil
}

// Validate returns a flaw for every schema violation of element.
func (v *SchemaValidator) Validate(element JSONElement) (flaws []string, err error) {
	flaws = []string{}
	elementType := gjson.GetBytes(element, discriminator)
	if !elementType.Exists() {
		return append(flaws, "element needs to have a type"), nil
	}

	schema, ok := v.schemas[elementType.String()]
	if !ok {
		return flaws, nil
	}

	errs, err := schema.ValidateBytes(context.Background(), element)
	if err != nil {
		return nil, err
	}
	for _, verr := range errs {
		flaws = append(flaws, fmt.Sprintf("failed to validate element: %s", verr.Error()))
	}
	return flaws, nil
}
