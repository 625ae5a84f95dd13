/*
 * Copyright 2021 National Library of Norway.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *       http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package warc

import (
	"fmt"
	"io"
	"strings"
)

// NameValue is a single header field (name, value) pair. Names are
// preserved verbatim as parsed; comparisons elsewhere are case-insensitive.
type NameValue struct {
	Name  string
	Value string
}

// WarcFields is an ordered, duplicate-preserving collection of WARC header
// fields, as required by spec.md §3 ("Duplicates are permitted and
// preserved").
type WarcFields []*NameValue

// Get returns the first value associated with name (case-insensitive), or
// "" if absent.
func (wf *WarcFields) Get(name string) string {
	for _, nv := range *wf {
		if strings.EqualFold(nv.Name, name) {
			return nv.Value
		}
	}
	return ""
}

// GetAll returns every value associated with name, in header order.
func (wf *WarcFields) GetAll(name string) []string {
	var result []string
	for _, nv := range *wf {
		if strings.EqualFold(nv.Name, name) {
			result = append(result, nv.Value)
		}
	}
	return result
}

// Has reports whether name occurs at least once.
func (wf *WarcFields) Has(name string) bool {
	for _, nv := range *wf {
		if strings.EqualFold(nv.Name, name) {
			return true
		}
	}
	return false
}

// Names returns the distinct field names present, in first-seen order.
func (wf *WarcFields) Names() []string {
	seen := make(map[string]bool)
	var result []string
	for _, nv := range *wf {
		lc := strings.ToLower(nv.Name)
		if !seen[lc] {
			seen[lc] = true
			result = append(result, nv.Name)
		}
	}
	return result
}

// Add appends a new field, keeping any existing values for name.
func (wf *WarcFields) Add(name, value string) {
	*wf = append(*wf, &NameValue{Name: name, Value: value})
}

// AddAll appends every field from other.
func (wf *WarcFields) AddAll(other WarcFields) {
	*wf = append(*wf, other...)
}

// Set replaces all existing values for name with a single value, or
// appends name if not already present.
func (wf *WarcFields) Set(name, value string) {
	replaced := false
	var result WarcFields
	for _, nv := range *wf {
		if strings.EqualFold(nv.Name, name) {
			if replaced {
				continue
			}
			nv.Value = value
			replaced = true
		}
		result = append(result, nv)
	}
	if !replaced {
		result = append(result, &NameValue{Name: name, Value: value})
	}
	*wf = result
}

// Delete removes every field matching name.
func (wf *WarcFields) Delete(name string) {
	var result WarcFields
	for _, nv := range *wf {
		if !strings.EqualFold(nv.Name, name) {
			result = append(result, nv)
		}
	}
	*wf = result
}

// WriteTo writes the fields as "Name: Value\r\n" pairs, in order.
func (wf *WarcFields) WriteTo(w io.Writer) (n int64, err error) {
	for _, field := range *wf {
		written, err := fmt.Fprintf(w, "%s: %s\r\n", field.Name, field.Value)
		n += int64(written)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (wf WarcFields) String() string {
	sb := &strings.Builder{}
	wf.WriteTo(sb)
	return sb.String()
}
