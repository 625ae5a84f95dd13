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

package verify

import (
	"fmt"

	"github.com/fatih/color"
)

// Check names a verification rule, matching the `--exclude-check` values of
// spec.md §4.7.
type Check string

const (
	CheckMandatoryFields     Check = "mandatory-fields"
	CheckKnownRecordType     Check = "known-record-type"
	CheckContentType         Check = "content-type"
	CheckConcurrentTo        Check = "concurrent-to"
	CheckBlockDigest         Check = "block-digest"
	CheckPayloadDigest       Check = "payload-digest"
	CheckIPAddress           Check = "ip-address"
	CheckRefersTo            Check = "refers-to"
	CheckRefersToTargetURI   Check = "refers-to-target-uri"
	CheckRefersToDate        Check = "refers-to-date"
	CheckTargetURI           Check = "target-uri"
	CheckTruncated           Check = "truncated"
	CheckWarcinfoID          Check = "warcinfo-id"
	CheckFilename            Check = "filename"
	CheckProfile             Check = "profile"
	CheckSegment             Check = "segment"
	CheckRecordAtATime       Check = "record-at-a-time-compression"
	CheckDuplicateRecordID   Check = "duplicate-record-id"
)

// Severity distinguishes a hard failure from an advisory warning. Only
// record-at-a-time compression misalignment and duplicate record IDs are
// warnings (spec.md §4.7); every other failed check is an error.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// colored renders the severity using the conventions the rest of this
// module's CLI output uses for diagnostics.
func (s Severity) colored() string {
	switch s {
	case SeverityWarning:
		return color.YellowString(s.String())
	default:
		return color.RedString(s.String())
	}
}

// Problem is one failed check, per spec.md §4.7: "{file, offset, record_id,
// check, detail}".
type Problem struct {
	File     string
	Offset   int64
	RecordID string
	Check    Check
	Severity Severity
	Detail   string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s %s@%d [%s] %s: %s", p.Severity.colored(), p.File, p.Offset, p.RecordID, p.Check, p.Detail)
}

func newProblem(file string, offset int64, recordID string, check Check, detail string) Problem {
	return Problem{File: file, Offset: offset, RecordID: recordID, Check: check, Severity: SeverityError, Detail: detail}
}

func newWarning(file string, offset int64, recordID string, check Check, detail string) Problem {
	return Problem{File: file, Offset: offset, RecordID: recordID, Check: check, Severity: SeverityWarning, Detail: detail}
}
