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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidator_Validate(t *testing.T) {
	validFile := jsons(Element{
		"id":   "file--920d7c41-0fef-4cf8-bce2-ead120f6b506",
		"type": "file",
		"name": "foo.txt",
		"size": 5,
		"hashes": map[string]interface{}{
			"SHA-256": "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		},
		"mtime": "2021-06-01T10:00:00.000Z",
	})

	tests := []struct {
		name      string
		element   JSONElement
		wantFlaws int
	}{
		{"valid", validFile, 0},
		{"missing name", jsons(Element{"id": "file--920d7c41-0fef-4cf8-bce2-ead120f6b506", "type": "file", "foo": "foo.txt"}), 1},
		{"bad id", jsons(Element{"id": "file--1", "type": "file", "name": "a"}), 1},
		{"bad hash", jsons(Element{"id": "file--920d7c41-0fef-4cf8-bce2-ead120f6b506", "type": "file", "name": "a", "hashes": map[string]interface{}{"SHA-256": "xyz"}}), 1},
		{"bad time", jsons(Element{"id": "file--920d7c41-0fef-4cf8-bce2-ead120f6b506", "type": "file", "name": "a", "ctime": "yesterday"}), 1},
		{"unknown type", jsons(Element{"type": "bookmark"}), 0},
		{"missing type", jsons(Element{"name": "a"}), 1},
	}
	validator, err := NewSchemaValidator()
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flaws, err := validator.Validate(tt.element)
			require.NoError(t, err)
			assert.Len(t, flaws, tt.wantFlaws, "%v", flaws)
		})
	}
}

func TestSchemaValidator_AddSchema(t *testing.T) {
	validator, err := NewSchemaValidator()
	require.NoError(t, err)

	assert.Error(t, validator.AddSchema([]byte(`{"type": "object"}`)))

	err = validator.AddSchema([]byte(`{"title": "note", "type": "object", "required": ["text"]}`))
	require.NoError(t, err)

	flaws, err := validator.Validate(jsons(Element{"type": "note"}))
	require.NoError(t, err)
	assert.Len(t, flaws, 1)
}
