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
	"fmt"
	"reflect"
	"strconv"
)

// flatten returns a map one level deep with dot separated keys, e.g.
// {"hashes": {"SHA-256": "..."}} becomes {"hashes.SHA-256": "..."}. Slice
// elements are keyed by their index.
func flatten(nested map[string]interface{}) map[string]interface{} {
	flatmap := map[string]interface{}{}
	flattenInto(flatmap, "", nested)
	return flatmap
}

func flattenInto(flatmap map[string]interface{}, prefix string, nested interface{}) {
	if nested == nil {
		return
	}

	key := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + "." + k
	}

	value := reflect.ValueOf(nested)
	switch value.Kind() {
	case reflect.Map:
		for _, k := range value.MapKeys() {
			flattenInto(flatmap, key(fmt.Sprint(k.Interface())), value.MapIndex(k).Interface())
		}
	case reflect.Slice:
		for i := 0; i < value.Len(); i++ {
			flattenInto(flatmap, key(strconv.Itoa(i)), value.Index(i).Interface())
		}
	default:
		flatmap[prefix] = nested
	}
}
