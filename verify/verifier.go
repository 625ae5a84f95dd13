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
	"io"
	"strings"

	"github.com/nlnwa/warccore"
)

var knownRecordTypes = map[string]bool{
	"warcinfo":     true,
	"response":     true,
	"resource":     true,
	"request":      true,
	"metadata":     true,
	"revisit":      true,
	"conversion":   true,
	"continuation": true,
}

var truncatedValues = map[string]bool{
	"length":     true,
	"time":       true,
	"disconnect": true,
	"unspecified": true,
}

// Verifier drives two passes over one or more WARC files through a
// warc.PushDecoder, per spec.md §4.7.
type Verifier struct {
	cfg      warc.Config
	store    Store
	excluded map[Check]bool
}

// New constructs a Verifier. excluded lists checks the caller disabled via
// --exclude-check; a nil or empty set runs every check.
func New(cfg warc.Config, store Store, excluded []Check) *Verifier {
	ex := make(map[Check]bool, len(excluded))
	for _, c := range excluded {
		ex[c] = true
	}
	return &Verifier{cfg: cfg, store: store, excluded: ex}
}

func (v *Verifier) enabled(c Check) bool {
	return !v.excluded[c]
}

// recordView pairs one decoded record's Header event with its later
// BlockChunk/BlockEnd events, reconstructing a coherent per-record view
// from the flat DecoderEvent stream spec.md §4.3 defines.
type recordView struct {
	file       string
	offset     int64
	version    warc.RecordVersion
	recordType warc.RecordType
	fields     warc.WarcFields
}

// drive reads every byte of r through a fresh warc.PushDecoder and invokes
// onRecord once per complete record with its header and concatenated block
// bytes.
func drive(cfg warc.Config, file string, r io.Reader, onRecord func(rv recordView, block []byte, checksums warc.ChecksumSet, memberSpan int) error) error {
	dec := warc.NewPushDecoder(file, cfg)
	buf := make([]byte, 64*1024)

	var cur recordView
	var block []byte
	haveHeader := false

	handle := func(events []warc.DecoderEvent) error {
		for _, ev := range events {
			switch ev.Kind {
			case warc.EventMetadata:
				cur = recordView{file: ev.File, offset: ev.Position}
				block = nil
				haveHeader = false
			case warc.EventHeader:
				cur.version = ev.Version
				cur.recordType = ev.RecordType
				cur.fields = ev.Fields
				haveHeader = true
			case warc.EventBlockChunk:
				block = append(block, ev.Data...)
			case warc.EventBlockEnd:
				if haveHeader {
					if err := onRecord(cur, block, ev.Checksums, ev.MemberSpan); err != nil {
						return err
					}
				}
			case warc.EventEndOfFile:
			}
		}
		return nil
	}

	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := dec.Write(buf[:n]); werr != nil {
				return werr
			}
			events, eerr := dec.Events()
			if err := handle(events); err != nil {
				return err
			}
			if eerr != nil {
				return eerr
			}
		}
		if rerr == io.EOF {
			if err := dec.WriteEOF(); err != nil {
				return err
			}
			events, eerr := dec.Events()
			if err := handle(events); err != nil {
				return err
			}
			return eerr
		}
		if rerr != nil {
			return rerr
		}
	}
}

// Pass1 streams file once, collecting per-record metadata into the store
// and checking each record's WARC-Block-Digest inline (spec.md §4.7 "Pass
// 1: collect").
func (v *Verifier) Pass1(file string, r io.Reader) ([]Problem, error) {
	var problems []Problem

	err := drive(v.cfg, file, r, func(rv recordView, block []byte, _ warc.ChecksumSet, _ int) error {
		id := rv.fields.Get(warc.WarcRecordID)

		rec := collectedRecord{
			Type:                  rv.fields.Get(warc.WarcType),
			TargetURI:             rv.fields.Get(warc.WarcTargetURI),
			Date:                  rv.fields.Get(warc.WarcDate),
			DeclaredBlockDigest:   rv.fields.Get(warc.WarcBlockDigest),
			DeclaredPayloadDigest: rv.fields.Get(warc.WarcPayloadDigest),
			Offset:                rv.offset,
			File:                  rv.file,
		}

		if v.enabled(CheckBlockDigest) && rec.DeclaredBlockDigest != "" {
			algorithm, _ := warc.ParseDigestField(rec.DeclaredBlockDigest)
			d, derr := warc.NewDigester(algorithm)
			if derr != nil {
				problems = append(problems, newProblem(rv.file, rv.offset, id, CheckBlockDigest, derr.Error()))
			} else {
				d.Write(block)
				if verr := warc.VerifyDigestField(rec.DeclaredBlockDigest, d, v.cfg.DefaultDigestEncoding); verr != nil {
					problems = append(problems, newProblem(rv.file, rv.offset, id, CheckBlockDigest, verr.Error()))
				}
			}
		}

		if id != "" {
			if v.enabled(CheckDuplicateRecordID) {
				if _, ok, gerr := getCollectedRecord(v.store, id); gerr != nil {
					return gerr
				} else if ok {
					problems = append(problems, newWarning(rv.file, rv.offset, id, CheckDuplicateRecordID,
						"WARC-Record-ID reused within this verification run; keeping this record's metadata"))
				}
			}
			if err := putCollectedRecord(v.store, id, rec); err != nil {
				return err
			}
		}
		return nil
	})
	return problems, err
}

// Pass2 streams file a second time, resolving every declared reference
// against what Pass1 collected and running the remaining single-record
// checks of spec.md §4.7's table.
func (v *Verifier) Pass2(file string, r io.Reader) ([]Problem, error) {
	var problems []Problem
	add := func(p Problem) { problems = append(problems, p) }

	err := drive(v.cfg, file, r, func(rv recordView, block []byte, _ warc.ChecksumSet, memberSpan int) error {
		id := rv.fields.Get(warc.WarcRecordID)
		typeStr := strings.ToLower(rv.fields.Get(warc.WarcType))

		if v.enabled(CheckRecordAtATime) && v.cfg.Compression != warc.CompressionNone && memberSpan > 1 {
			add(newWarning(rv.file, rv.offset, id, CheckRecordAtATime,
				fmt.Sprintf("record spans %d container members, expected 1", memberSpan)))
		}

		if v.enabled(CheckMandatoryFields) {
			for _, f := range []string{warc.WarcRecordID, warc.ContentLength, warc.WarcDate, warc.WarcType} {
				if !rv.fields.Has(f) {
					add(newProblem(rv.file, rv.offset, id, CheckMandatoryFields, "missing required field: "+f))
				}
			}
		}
		if v.enabled(CheckKnownRecordType) && !knownRecordTypes[typeStr] {
			add(newProblem(rv.file, rv.offset, id, CheckKnownRecordType, "unrecognized WARC-Type: "+typeStr))
		}
		if v.enabled(CheckContentType) {
			cl := rv.fields.Get(warc.ContentLength)
			if cl != "" && cl != "0" && rv.recordType != warc.Continuation && !rv.fields.Has(warc.ContentType) {
				add(newProblem(rv.file, rv.offset, id, CheckContentType, "non-empty block with no Content-Type"))
			}
		}
		if v.enabled(CheckIPAddress) {
			if ip := rv.fields.Get(warc.WarcIPAddress); ip != "" {
				if !validIP(ip) {
					add(newProblem(rv.file, rv.offset, id, CheckIPAddress, "invalid IP address: "+ip))
				}
			}
		}
		if v.enabled(CheckTargetURI) {
			if uri := rv.fields.Get(warc.WarcTargetURI); uri != "" && !validURI(uri) {
				add(newProblem(rv.file, rv.offset, id, CheckTargetURI, "invalid WARC-Target-URI: "+uri))
			}
		}
		if v.enabled(CheckTruncated) {
			if t := rv.fields.Get(warc.WarcTruncated); t != "" && !truncatedValues[t] {
				add(newProblem(rv.file, rv.offset, id, CheckTruncated, "invalid WARC-Truncated value: "+t))
			}
		}
		if v.enabled(CheckConcurrentTo) {
			for _, cid := range rv.fields.GetAll(warc.WarcConcurrentTo) {
				if _, ok, _ := getCollectedRecord(v.store, cid); !ok {
					add(newProblem(rv.file, rv.offset, id, CheckConcurrentTo, "WARC-Concurrent-To does not resolve: "+cid))
				}
			}
		}
		if v.enabled(CheckWarcinfoID) {
			if wid := rv.fields.Get(warc.WarcWarcinfoID); wid != "" {
				referenced, ok, _ := getCollectedRecord(v.store, wid)
				if !ok {
					add(newProblem(rv.file, rv.offset, id, CheckWarcinfoID, "WARC-Warcinfo-ID does not resolve: "+wid))
				} else if referenced.Type != "warcinfo" {
					add(newProblem(rv.file, rv.offset, id, CheckWarcinfoID, "WARC-Warcinfo-ID does not resolve to a warcinfo record: "+wid))
				}
			}
		}
		if v.enabled(CheckFilename) && rv.recordType == warc.Warcinfo && !rv.fields.Has(warc.WarcFilename) {
			add(newProblem(rv.file, rv.offset, id, CheckFilename, "warcinfo record missing WARC-Filename"))
		}
		if v.enabled(CheckProfile) && rv.recordType == warc.Revisit && !rv.fields.Has(warc.WarcProfile) {
			add(newProblem(rv.file, rv.offset, id, CheckProfile, "revisit record missing WARC-Profile"))
		}
		if v.enabled(CheckSegment) && rv.recordType == warc.Continuation {
			for _, f := range []string{warc.WarcSegmentOriginID, warc.WarcSegmentNumber} {
				if !rv.fields.Has(f) {
					add(newProblem(rv.file, rv.offset, id, CheckSegment, "continuation record missing "+f))
				}
			}
		}

		if rv.recordType == warc.Revisit {
			if v.enabled(CheckRefersTo) || v.enabled(CheckPayloadDigest) {
				v.checkRevisit(rv, id, add)
			}
		} else if v.enabled(CheckPayloadDigest) {
			v.checkPayloadDigest(rv, id, block, add)
		}

		return nil
	})
	return problems, err
}

func (v *Verifier) checkRevisit(rv recordView, id string, add func(Problem)) {
	ref := warc.ReferenceOf(rv.fields)
	if ref.RefersTo == "" {
		if v.enabled(CheckRefersTo) {
			add(newProblem(rv.file, rv.offset, id, CheckRefersTo, "revisit missing WARC-Refers-To"))
		}
		return
	}
	referenced, ok, _ := getCollectedRecord(v.store, ref.RefersTo)
	if !ok {
		if v.enabled(CheckRefersTo) {
			add(newProblem(rv.file, rv.offset, id, CheckRefersTo, "WARC-Refers-To does not resolve: "+ref.RefersTo))
		}
		return
	}
	candidate := warc.WarcFields{}
	candidate.Add(warc.WarcRecordID, ref.RefersTo)
	candidate.Add(warc.WarcTargetURI, referenced.TargetURI)
	candidate.Add(warc.WarcDate, referenced.Date)
	if v.enabled(CheckRefersTo) && !ref.Resolves(candidate) {
		add(newProblem(rv.file, rv.offset, id, CheckRefersTo, "revisit cross-reference does not match referenced record's target URI/date"))
	}
	if v.enabled(CheckPayloadDigest) {
		declared := rv.fields.Get(warc.WarcPayloadDigest)
		blockLenZero := rv.fields.Get(warc.ContentLength) == "0"
		if err := warc.ValidateRevisitPayloadDigest(blockLenZero, declared, referenced.DeclaredPayloadDigest); err != nil {
			add(newProblem(rv.file, rv.offset, id, CheckPayloadDigest, err.Error()))
		}
	}
}

func (v *Verifier) checkPayloadDigest(rv recordView, id string, block []byte, add func(Problem)) {
	declared := rv.fields.Get(warc.WarcPayloadDigest)
	if declared == "" {
		return
	}
	algorithm, _ := warc.ParseDigestField(declared)
	d, err := warc.NewDigester(algorithm)
	if err != nil {
		add(newProblem(rv.file, rv.offset, id, CheckPayloadDigest, err.Error()))
		return
	}

	if rv.recordType&(warc.Response|warc.Request) != 0 {
		extractor := warc.NewHttpPayloadExtractor(rv.recordType, v.cfg)
		extractor.Write(block)
		extractor.WriteEOF()
		events, eerr := extractor.Events()
		for _, ev := range events {
			if ev.Kind == warc.ExtractChunk {
				d.Write(ev.Data)
			}
		}
		if eerr != nil {
			add(newProblem(rv.file, rv.offset, id, CheckPayloadDigest, "failed to decode HTTP payload: "+eerr.Error()))
			return
		}
	} else {
		// Non-HTTP records carry their payload as the block verbatim.
		d.Write(block)
	}

	if verr := warc.VerifyDigestField(declared, d, v.cfg.DefaultDigestEncoding); verr != nil {
		add(newProblem(rv.file, rv.offset, id, CheckPayloadDigest, verr.Error()))
	}
}
