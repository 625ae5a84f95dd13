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

func TestReferenceOfPrefersDedicatedFields(t *testing.T) {
	fields := WarcFields{}
	fields.Add(WarcRefersTo, "<urn:uuid:earlier>")
	fields.Add(WarcRefersToTargetURI, "http://example.com/a")
	fields.Add(WarcRefersToDate, "2020-01-01T00:00:00Z")
	fields.Add(WarcTargetURI, "http://example.com/b")
	fields.Add(WarcDate, "2020-01-02T00:00:00Z")

	ref := ReferenceOf(fields)
	assert.Equal(t, "<urn:uuid:earlier>", ref.RefersTo)
	assert.Equal(t, "http://example.com/a", ref.TargetURI)
	assert.Equal(t, "2020-01-01T00:00:00Z", ref.Date)
}

func TestReferenceOfFallsBackToPlainFieldsForPre11Producers(t *testing.T) {
	fields := WarcFields{}
	fields.Add(WarcRefersTo, "<urn:uuid:earlier>")
	fields.Add(WarcTargetURI, "http://example.com/b")
	fields.Add(WarcDate, "2020-01-02T00:00:00Z")

	ref := ReferenceOf(fields)
	assert.Equal(t, "http://example.com/b", ref.TargetURI)
	assert.Equal(t, "2020-01-02T00:00:00Z", ref.Date)
}

func TestRevisitReferenceResolvesRequiresAllDeclaredFieldsToMatch(t *testing.T) {
	ref := RevisitReference{RefersTo: "<urn:uuid:1>", TargetURI: "http://example.com/", Date: "2020-01-01T00:00:00Z"}

	candidate := WarcFields{}
	candidate.Add(WarcRecordID, "<urn:uuid:1>")
	candidate.Add(WarcTargetURI, "http://example.com/")
	candidate.Add(WarcDate, "2020-01-01T00:00:00Z")
	assert.True(t, ref.Resolves(candidate))

	wrongURI := WarcFields{}
	wrongURI.Add(WarcRecordID, "<urn:uuid:1>")
	wrongURI.Add(WarcTargetURI, "http://example.com/other")
	wrongURI.Add(WarcDate, "2020-01-01T00:00:00Z")
	assert.False(t, ref.Resolves(wrongURI))
}

func TestRevisitReferenceResolvesIgnoresUnsetFields(t *testing.T) {
	ref := RevisitReference{TargetURI: "http://example.com/"}
	candidate := WarcFields{}
	candidate.Add(WarcRecordID, "<urn:uuid:anything>")
	candidate.Add(WarcTargetURI, "http://example.com/")
	assert.True(t, ref.Resolves(candidate))
}

func TestValidateRevisitPayloadDigestSkipsCheckWhenDigestAbsent(t *testing.T) {
	assert.NoError(t, ValidateRevisitPayloadDigest(false, "", "sha1:abc"))
}

func TestValidateRevisitPayloadDigestSkipsCheckWhenRevisitBlockIsEmpty(t *testing.T) {
	assert.NoError(t, ValidateRevisitPayloadDigest(true, "sha1:mismatched", "sha1:abc"))
}

func TestValidateRevisitPayloadDigestRequiresReferencedDigest(t *testing.T) {
	err := ValidateRevisitPayloadDigest(false, "sha1:abc", "")
	assert.Error(t, err)
}

func TestValidateRevisitPayloadDigestFlagsMismatch(t *testing.T) {
	err := ValidateRevisitPayloadDigest(false, "sha1:abc", "sha1:def")
	assert.Error(t, err)
}

func TestValidateRevisitPayloadDigestAcceptsMatch(t *testing.T) {
	assert.NoError(t, ValidateRevisitPayloadDigest(false, "sha1:abc", "sha1:abc"))
}
