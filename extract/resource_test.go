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

package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nlnwa/warccore"
)

func TestResourceSkipsWarcinfoAndMetadata(t *testing.T) {
	m := Resource(warc.Warcinfo, "http://example.com/", "", 100)
	assert.False(t, m.HasContent)
	assert.Nil(t, m.FilePathComponents)

	m = Resource(warc.Metadata, "http://example.com/", "", 100)
	assert.False(t, m.HasContent)
}

func TestResourceSkipsEmptyBlock(t *testing.T) {
	m := Resource(warc.Response, "http://example.com/", "", 0)
	assert.False(t, m.HasContent)
}

func TestResourceSkipsEmptyTargetURI(t *testing.T) {
	m := Resource(warc.Response, "", "", 100)
	assert.False(t, m.HasContent)
}

func TestResourceFilePathComponents(t *testing.T) {
	m := Resource(warc.Response, "http://example.com/a/b.html", "", 100)
	assert.True(t, m.HasContent)
	assert.Equal(t, []string{"http", "example.com", "a", "b.html"}, m.FilePathComponents)
}

func TestResourceEmptyPathBecomesIndex(t *testing.T) {
	m := Resource(warc.Response, "http://example.com/", "", 100)
	assert.Equal(t, []string{"http", "example.com", "index"}, m.FilePathComponents)
}

func TestResourceIsTruncated(t *testing.T) {
	m := Resource(warc.Response, "http://example.com/", "length", 100)
	assert.True(t, m.IsTruncated)
}

func TestSanitizeComponentStripsControlChars(t *testing.T) {
	out := sanitizeComponent("abc\x00\x1fdef")
	assert.Equal(t, "abcdef", out)
}

func TestSanitizeComponentReplacesPathSeparators(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeComponent("a/b\\c"))
}

func TestSanitizeComponentReservedDeviceName(t *testing.T) {
	assert.Equal(t, "CON_", sanitizeComponent("CON"))
	assert.Equal(t, "con_", sanitizeComponent("con"))
}

func TestSanitizeComponentTruncatesToByteBudget(t *testing.T) {
	long := strings.Repeat("a", maxComponentBytes+50)
	out := sanitizeComponent(long)
	assert.LessOrEqual(t, len(out), maxComponentBytes)
}

func TestFilePathComponentsRejectsOversizedTotal(t *testing.T) {
	long := "http://example.com/" + strings.Repeat("a/", maxTotalBytes)
	_, ok := filePathComponents(long)
	assert.False(t, ok)
}
