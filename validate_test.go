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

func validResourceFields() WarcFields {
	fields := WarcFields{}
	fields.Add(WarcRecordID, "<urn:uuid:abc>")
	fields.Add(ContentLength, "0")
	fields.Add(WarcDate, "2020-01-01T00:00:00Z")
	fields.Add(WarcType, "resource")
	return fields
}

func TestValidateHeaderAcceptsWellFormedRecord(t *testing.T) {
	fields := validResourceFields()
	rt, validation := ValidateHeader(&fields, V1_1, false)
	assert.Equal(t, Resource, rt)
	assert.True(t, validation.Valid())
}

func TestValidateHeaderFlagsMissingRequiredFields(t *testing.T) {
	fields := WarcFields{}
	fields.Add(WarcType, "resource")
	_, validation := ValidateHeader(&fields, V1_1, false)
	assert.False(t, validation.Valid())
}

func TestValidateHeaderFlagsUnrecognizedRecordType(t *testing.T) {
	fields := validResourceFields()
	fields.Set(WarcType, "not-a-type")
	rt, validation := ValidateHeader(&fields, V1_1, false)
	assert.Equal(t, RecordType(0), rt)
	assert.False(t, validation.Valid())
}

func TestValidateHeaderFlagsMissingContentTypeWithNonEmptyBody(t *testing.T) {
	fields := validResourceFields()
	fields.Set(ContentLength, "10")
	_, validation := ValidateHeader(&fields, V1_1, false)
	assert.False(t, validation.Valid())
}

func TestValidateHeaderRejectsMalformedWarcID(t *testing.T) {
	fields := validResourceFields()
	fields.Set(WarcRecordID, "missing-angle-brackets")
	_, validation := ValidateHeader(&fields, V1_1, false)
	assert.False(t, validation.Valid())
}

func TestValidateHeaderRejectsDuplicateNonRepeatableField(t *testing.T) {
	fields := validResourceFields()
	fields.Add(WarcDate, "2020-01-02T00:00:00Z")
	_, validation := ValidateHeader(&fields, V1_1, false)
	assert.False(t, validation.Valid())
}

func TestValidateHeaderRejectsWarcConcurrentToOnWarcinfo(t *testing.T) {
	fields := WarcFields{}
	fields.Add(WarcRecordID, "<urn:uuid:abc>")
	fields.Add(ContentLength, "0")
	fields.Add(WarcDate, "2020-01-01T00:00:00Z")
	fields.Add(WarcType, "warcinfo")
	fields.Add(WarcConcurrentTo, "<urn:uuid:def>")
	_, validation := ValidateHeader(&fields, V1_1, false)
	assert.False(t, validation.Valid())
}

func TestNormalizeNameCanonicalizesKnownField(t *testing.T) {
	name, def := NormalizeName("warc-type")
	assert.Equal(t, WarcType, name)
	assert.Equal(t, WarcType, def.name)
}

func TestNormalizeNameCanonicalizesUnknownFieldAsExtension(t *testing.T) {
	name, def := NormalizeName("x-custom-field")
	assert.Equal(t, "X-Custom-Field", name)
	assert.Equal(t, "", def.name)
}
