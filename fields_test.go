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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWarcFieldsGetIsCaseInsensitiveAndPreservesDuplicates(t *testing.T) {
	fields := WarcFields{}
	fields.Add("WARC-Type", "resource")
	fields.Add("X-Custom", "one")
	fields.Add("X-Custom", "two")

	assert.Equal(t, "resource", fields.Get("warc-type"))
	assert.Equal(t, "one", fields.Get("x-custom"))
	assert.Equal(t, []string{"one", "two"}, fields.GetAll("X-Custom"))
	assert.True(t, fields.Has("x-CUSTOM"))
	assert.False(t, fields.Has("missing"))
}

func TestWarcFieldsSetReplacesAllMatchesWithOne(t *testing.T) {
	fields := WarcFields{}
	fields.Add("X-Custom", "one")
	fields.Add("X-Custom", "two")
	fields.Set("X-Custom", "three")

	assert.Equal(t, []string{"three"}, fields.GetAll("X-Custom"))
}

func TestWarcFieldsSetAppendsWhenAbsent(t *testing.T) {
	fields := WarcFields{}
	fields.Set("WARC-Type", "resource")
	assert.Equal(t, "resource", fields.Get("WARC-Type"))
}

func TestWarcFieldsDeleteRemovesAllMatches(t *testing.T) {
	fields := WarcFields{}
	fields.Add("X-Custom", "one")
	fields.Add("X-Custom", "two")
	fields.Add("WARC-Type", "resource")
	fields.Delete("x-custom")

	assert.False(t, fields.Has("X-Custom"))
	assert.Equal(t, "resource", fields.Get("WARC-Type"))
}

func TestWarcFieldsNamesPreservesFirstSeenOrder(t *testing.T) {
	fields := WarcFields{}
	fields.Add("WARC-Type", "resource")
	fields.Add("X-Custom", "one")
	fields.Add("warc-type", "duplicate")

	assert.Equal(t, []string{"WARC-Type", "X-Custom"}, fields.Names())
}

func TestWarcFieldsAddAllAppendsInOrder(t *testing.T) {
	a := WarcFields{}
	a.Add("WARC-Type", "resource")
	b := WarcFields{}
	b.Add("X-Custom", "one")
	a.AddAll(b)

	assert.Equal(t, []string{"WARC-Type", "X-Custom"}, a.Names())
}

func TestWarcFieldsStringFormatsCRLFPairs(t *testing.T) {
	fields := WarcFields{}
	fields.Add("WARC-Type", "resource")
	fields.Add("Content-Length", "0")
	assert.Equal(t, "WARC-Type: resource\r\nContent-Length: 0\r\n", fields.String())
}
