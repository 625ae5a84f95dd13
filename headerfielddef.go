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
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nlnwa/whatwg-url/url"
)

// WARC header field name constants, per ISO 28500.
const (
	ContentLength             = "Content-Length"
	ContentType               = "Content-Type"
	WarcBlockDigest           = "WARC-Block-Digest"
	WarcConcurrentTo          = "WARC-Concurrent-To"
	WarcDate                  = "WARC-Date"
	WarcFilename              = "WARC-Filename"
	WarcIPAddress             = "WARC-IP-Address"
	WarcIdentifiedPayloadType = "WARC-Identified-Payload-Type"
	WarcPayloadDigest         = "WARC-Payload-Digest"
	WarcProfile               = "WARC-Profile"
	WarcRecordID              = "WARC-Record-ID"
	WarcRefersTo              = "WARC-Refers-To"
	WarcRefersToDate          = "WARC-Refers-To-Date"
	WarcRefersToTargetURI     = "WARC-Refers-To-Target-URI"
	WarcSegmentNumber         = "WARC-Segment-Number"
	WarcSegmentOriginID       = "WARC-Segment-Origin-ID"
	WarcSegmentTotalLength    = "WARC-Segment-Total-Length"
	WarcTargetURI             = "WARC-Target-URI"
	WarcTruncated             = "WARC-Truncated"
	WarcType                  = "WARC-Type"
	WarcWarcinfoID            = "WARC-Warcinfo-ID"
)

// RecordType is a bitmask identifying a WARC-Type value. Using a bitmask
// lets field definitions list the set of record types a field is legal on
// as a single OR'd value.
type RecordType uint16

const (
	Warcinfo RecordType = 1 << iota
	Response
	Resource
	Request
	Metadata
	Revisit
	Conversion
	Continuation
)

var recordTypeStringToType = map[string]RecordType{
	"warcinfo":     Warcinfo,
	"response":     Response,
	"resource":     Resource,
	"request":      Request,
	"metadata":     Metadata,
	"revisit":      Revisit,
	"conversion":   Conversion,
	"continuation": Continuation,
}

var recordTypeToString = map[RecordType]string{
	Warcinfo:     "warcinfo",
	Response:     "response",
	Resource:     "resource",
	Request:      "request",
	Metadata:     "metadata",
	Revisit:      "revisit",
	Conversion:   "conversion",
	Continuation: "continuation",
}

func (rt RecordType) String() string {
	if s, ok := recordTypeToString[rt]; ok {
		return s
	}
	return "unrecognized"
}

func stringToRecordType(s string) RecordType {
	return recordTypeStringToType[strings.ToLower(s)]
}

// RecordVersion identifies the WARC/x.y version line.
type RecordVersion struct {
	Major, Minor uint8
	id           uint8
}

func (v RecordVersion) String() string {
	return fmt.Sprintf("WARC/%d.%d", v.Major, v.Minor)
}

var (
	V1_0 = RecordVersion{Major: 1, Minor: 0, id: 1}
	V1_1 = RecordVersion{Major: 1, Minor: 1, id: 2}
)

var requiredFields = []string{WarcRecordID, ContentLength, WarcDate, WarcType}

// knownRecordTypeMask ORs every known record type together; used by the
// field table below for fields allowed on every record type.
const knownRecordTypeMask = Warcinfo | Response | Resource | Request | Metadata | Revisit | Conversion | Continuation

type fieldDef struct {
	name           string
	validationFunc func(name, value string, version RecordVersion, recordType RecordType, strict bool) (validatedValue string, err error)
	repeatable     bool
	supportedRec   RecordType
	supportedSpec  uint8
}

var fieldDefs = []fieldDef{
	{"", pUnknown, true, knownRecordTypeMask, V1_0.id | V1_1.id},
	{ContentLength, pLong, false, knownRecordTypeMask, V1_0.id | V1_1.id},
	{ContentType, pString, false, knownRecordTypeMask, V1_0.id | V1_1.id},
	{WarcBlockDigest, pDigest, false, knownRecordTypeMask, V1_0.id | V1_1.id},
	{WarcConcurrentTo, pWarcId, true, Response | Resource | Request | Metadata | Revisit, V1_0.id | V1_1.id},
	{WarcDate, pTime, false, knownRecordTypeMask, V1_0.id | V1_1.id},
	{WarcFilename, pString, false, Warcinfo, V1_0.id | V1_1.id},
	{WarcIPAddress, pIP, false, Response | Resource | Request | Metadata | Revisit, V1_0.id | V1_1.id},
	{WarcIdentifiedPayloadType, pString, false, knownRecordTypeMask, V1_0.id | V1_1.id},
	{WarcPayloadDigest, pDigest, false, knownRecordTypeMask, V1_0.id | V1_1.id},
	{WarcProfile, pURI, false, Revisit, V1_0.id | V1_1.id},
	{WarcRecordID, pWarcId, false, knownRecordTypeMask, V1_0.id | V1_1.id},
	{WarcRefersTo, pWarcId, false, Metadata | Revisit | Conversion, V1_0.id | V1_1.id},
	{WarcRefersToDate, pTime, false, Revisit, V1_1.id},
	{WarcRefersToTargetURI, pURI, false, Revisit, V1_1.id},
	{WarcSegmentNumber, pInt, false, knownRecordTypeMask, V1_0.id | V1_1.id},
	{WarcSegmentOriginID, pWarcId, false, Continuation, V1_0.id | V1_1.id},
	{WarcSegmentTotalLength, pLong, false, Continuation, V1_0.id | V1_1.id},
	{WarcTargetURI, pURI, false, knownRecordTypeMask, V1_0.id | V1_1.id},
	{WarcTruncated, pTruncReason, false, knownRecordTypeMask, V1_0.id | V1_1.id},
	{WarcType, pWarcType, false, knownRecordTypeMask, V1_0.id | V1_1.id},
	{WarcWarcinfoID, pWarcId, false, Response | Resource | Request | Metadata | Revisit | Conversion | Continuation, V1_0.id | V1_1.id},
}

var lcHdrNameToDef = make(map[string]fieldDef)

func init() {
	for _, fd := range fieldDefs {
		lcHdrNameToDef[strings.ToLower(fd.name)] = fd
	}
}

// NormalizeName canonicalizes a header field name to its well-known form
// (e.g. "warc-type" -> "WARC-Type") and returns its definition. Unknown
// fields are canonicalized using standard HTTP header casing rules and
// are treated as permissive extension fields.
func NormalizeName(name string) (string, fieldDef) {
	lcName := strings.ToLower(name)
	if f, ok := lcHdrNameToDef[lcName]; ok {
		return f.name, f
	}
	return http.CanonicalHeaderKey(name), lcHdrNameToDef[""]
}

// ValidateHeader validates parsed header fields as a WARC record header for
// the given version, resolving and returning the record type. strict turns
// every violation into an error; non-strict mode returns violations as a
// *Validation rather than failing outright.
func ValidateHeader(wf *WarcFields, version RecordVersion, strict bool) (RecordType, *Validation) {
	validation := &Validation{}
	rt := resolveRecordType(wf, validation, strict)

	for _, nv := range *wf {
		name, def := NormalizeName(nv.Name)
		value, err := def.validationFunc(name, nv.Value, version, rt, strict)
		nv.Name = name
		if err == nil {
			nv.Value = value
		} else {
			validation.addError(newHeaderFieldError(name, err.Error()))
			if strict {
				return rt, validation
			}
		}
		if !def.repeatable && len(wf.GetAll(name)) > 1 {
			validation.addError(newHeaderFieldError(name, "field occurs more than once"))
		}
	}

	for _, f := range requiredFields {
		if !wf.Has(f) {
			validation.addError(newHeaderFieldErrorf("", "missing required field: %s", f))
		}
	}
	contentLength, _ := strconv.ParseInt(wf.Get(ContentLength), 10, 64)
	if rt != Continuation && contentLength > 0 && !wf.Has(ContentType) {
		validation.addError(newHeaderFieldErrorf("", "missing required field: %s", ContentType))
	}

	if (Warcinfo|Conversion|Continuation)&rt != 0 && wf.Has(WarcConcurrentTo) {
		validation.addError(newHeaderFieldErrorf(WarcConcurrentTo, "field not allowed for record type: %s", rt))
	}

	return rt, validation
}

func resolveRecordType(wf *WarcFields, validation *Validation, strict bool) RecordType {
	typeField := wf.Get(WarcType)
	if typeField == "" {
		validation.addError(newHeaderFieldErrorf(WarcType, "missing required field WARC-Type"))
		return 0
	}
	rt := stringToRecordType(typeField)
	if rt == 0 {
		validation.addError(newHeaderFieldErrorf(WarcType, "unrecognized value '%s' in field WARC-Type", typeField))
	}
	_ = strict
	return rt
}

func pUnknown(_, value string, _ RecordVersion, _ RecordType, _ bool) (string, error) {
	return value, nil
}

func pString(name, value string, version RecordVersion, recordType RecordType, strict bool) (string, error) {
	if _, err := checkLegal(name, version, recordType, strict, fieldDefFor(name)); err != nil {
		return "", err
	}
	return value, nil
}

func pURI(name, value string, version RecordVersion, recordType RecordType, strict bool) (string, error) {
	shouldValidate, err := checkLegal(name, version, recordType, strict, fieldDefFor(name))
	if err != nil {
		return "", err
	}
	if shouldValidate && value != "" {
		if _, err := url.Parse(value); err != nil {
			return "", err
		}
	}
	return value, nil
}

func pIP(name, value string, version RecordVersion, recordType RecordType, strict bool) (string, error) {
	shouldValidate, err := checkLegal(name, version, recordType, strict, fieldDefFor(name))
	if err != nil {
		return "", err
	}
	if shouldValidate {
		if ip := net.ParseIP(value); ip == nil {
			return "", fmt.Errorf("illegal ip address: %s", value)
		}
	}
	return value, nil
}

func pTime(name, value string, version RecordVersion, recordType RecordType, strict bool) (string, error) {
	shouldValidate, err := checkLegal(name, version, recordType, strict, fieldDefFor(name))
	if err != nil {
		return "", err
	}
	if shouldValidate {
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return "", err
		}
	}
	return value, nil
}

func pWarcType(name, value string, version RecordVersion, recordType RecordType, strict bool) (string, error) {
	if _, err := checkLegal(name, version, recordType, strict, fieldDefFor(name)); err != nil {
		return "", err
	}
	return value, nil
}

func pWarcId(name, value string, version RecordVersion, recordType RecordType, strict bool) (string, error) {
	shouldValidate, err := checkLegal(name, version, recordType, strict, fieldDefFor(name))
	if err != nil {
		return "", err
	}
	if shouldValidate {
		v := strings.Trim(value, "<>")
		if len(value) != len(v)+2 {
			return "", fmt.Errorf("WARC id should be encapsulated by <>")
		}
		if _, err := url.Parse(v); err != nil {
			return "", err
		}
	}
	return value, nil
}

func pInt(name, value string, version RecordVersion, recordType RecordType, strict bool) (string, error) {
	shouldValidate, err := checkLegal(name, version, recordType, strict, fieldDefFor(name))
	if err != nil {
		return "", err
	}
	if shouldValidate {
		if _, err := strconv.Atoi(value); err != nil {
			return "", err
		}
	}
	return value, nil
}

func pLong(name, value string, version RecordVersion, recordType RecordType, strict bool) (string, error) {
	shouldValidate, err := checkLegal(name, version, recordType, strict, fieldDefFor(name))
	if err != nil {
		return "", err
	}
	if shouldValidate {
		if v, err := strconv.ParseInt(value, 10, 64); err != nil || v < 0 {
			return "", fmt.Errorf("illegal non-negative integer: %s", value)
		}
	}
	return value, nil
}

func pDigest(name, value string, version RecordVersion, recordType RecordType, strict bool) (string, error) {
	if _, err := checkLegal(name, version, recordType, strict, fieldDefFor(name)); err != nil {
		return "", err
	}
	return value, nil
}

func pTruncReason(name, value string, version RecordVersion, recordType RecordType, strict bool) (string, error) {
	if _, err := checkLegal(name, version, recordType, strict, fieldDefFor(name)); err != nil {
		return "", err
	}
	switch value {
	case "length", "time", "disconnect", "unspecified", "":
	default:
		return "", fmt.Errorf("illegal value for WARC-Truncated: %s", value)
	}
	return value, nil
}

func fieldDefFor(name string) fieldDef {
	return lcHdrNameToDef[strings.ToLower(name)]
}

func checkLegal(name string, version RecordVersion, recordType RecordType, strict bool, def fieldDef) (shouldValidate bool, err error) {
	if recordType == 0 {
		return
	}
	if strict && version.id&def.supportedSpec == 0 {
		return
	}
	if strict && recordType&def.supportedRec == 0 {
		err = fmt.Errorf("illegal field '%v' in record type '%v'", name, recordType)
		return
	}
	shouldValidate = true
	return
}
