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
	"reflect"
	"testing"
)

func Test_flatten(t *testing.T) {
	tests := []struct {
		name   string
		object map[string]interface{}
		want   map[string]interface{}
	}{
		{"list", map[string]interface{}{"foo": []interface{}{"a", 1}}, map[string]interface{}{"foo.0": "a", "foo.1": 1}},
		{"nested", map[string]interface{}{"foo": map[string]interface{}{"a": 1}}, map[string]interface{}{"foo.a": 1}},
		{"nested string map", map[string]interface{}{"foo": map[string]string{"a": "b"}}, map[string]interface{}{"foo.a": "b"}},
		{"hashes", map[string]interface{}{"hashes": map[string]interface{}{"SHA-256": "ab"}}, map[string]interface{}{"hashes.SHA-256": "ab"}},
		{"empty map", map[string]interface{}{"foo": map[string]string{}}, map[string]interface{}{}},
		{"empty slice", map[string]interface{}{"foo": []interface{}{}}, map[string]interface{}{}},
		{"empty string", map[string]interface{}{"foo": ""}, map[string]interface{}{"foo": ""}},
		{"nil", map[string]interface{}{"foo": nil}, map[string]interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := flatten(tt.object); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("flatten() = %v, want %v", got, tt.want)
			}
		})
	}
}
