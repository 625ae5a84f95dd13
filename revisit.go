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

// RevisitReference is the cross-reference a revisit record declares back
// to an earlier record (spec.md §3 "Cross-reference"): (WARC-Refers-To,
// WARC-Refers-To-Target-URI, WARC-Refers-To-Date). Pre-1.1 producers
// sometimes only wrote WARC-Target-URI/WARC-Date on the revisit itself
// instead of the refers-to-prefixed fields; ReferenceOf falls back to
// those when the dedicated fields are absent.
type RevisitReference struct {
	RefersTo  string
	TargetURI string
	Date      string
}

// ReferenceOf extracts the cross-reference a revisit record's header
// declares. It is meaningless for any other record type.
func ReferenceOf(fields WarcFields) RevisitReference {
	ref := RevisitReference{
		RefersTo:  fields.Get(WarcRefersTo),
		TargetURI: fields.Get(WarcRefersToTargetURI),
		Date:      fields.Get(WarcRefersToDate),
	}
	if ref.TargetURI == "" {
		ref.TargetURI = fields.Get(WarcTargetURI)
	}
	if ref.Date == "" {
		ref.Date = fields.Get(WarcDate)
	}
	return ref
}

// Resolves reports whether candidate (an earlier record's header) is a
// valid resolution of ref: its WARC-Record-ID matches ref.RefersTo when
// present, and its target URI and date match wherever ref declared them
// (spec.md §3: "must resolve to an earlier record with matching target
// URI, date, and (if present) payload digest").
func (ref RevisitReference) Resolves(candidate WarcFields) bool {
	if ref.RefersTo != "" && candidate.Get(WarcRecordID) != ref.RefersTo {
		return false
	}
	if ref.TargetURI != "" && candidate.Get(WarcTargetURI) != ref.TargetURI {
		return false
	}
	if ref.Date != "" && candidate.Get(WarcDate) != ref.Date {
		return false
	}
	return true
}

// ValidateRevisitPayloadDigest implements the "Revisit rule" of spec.md
// §4.6: a revisit's declared WARC-Payload-Digest must equal the
// referenced record's payload digest rather than anything computed from
// the revisit's own (typically absent) block, and an empty or absent
// revisit block must never be flagged as a payload-digest mismatch -- the
// historical bug the spec calls out.
func ValidateRevisitPayloadDigest(blockLenZero bool, revisitDigest, referencedDigest string) error {
	if revisitDigest == "" {
		return nil
	}
	if blockLenZero {
		return nil
	}
	if referencedDigest == "" {
		return newHeaderFieldError(WarcPayloadDigest, "revisit refers to a record with no payload digest to compare against")
	}
	if revisitDigest != referencedDigest {
		return newHeaderFieldErrorf(WarcPayloadDigest, "revisit payload digest %s does not match referenced record's %s", revisitDigest, referencedDigest)
	}
	return nil
}
