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
	"encoding/json"
	"fmt"
)

// recordKeyPrefix namespaces pass-1 collected metadata under "record-id:<id>"
// (spec.md §4.7 "Pass 1: collect").
const recordKeyPrefix = "record-id:"

// collectedRecord is the compact record pass 1 writes for every input
// record, keyed by its WARC-Record-ID.
type collectedRecord struct {
	Type                  string `json:"type"`
	TargetURI             string `json:"target_uri"`
	Date                  string `json:"date"`
	DeclaredBlockDigest   string `json:"declared_block_digest"`
	DeclaredPayloadDigest string `json:"declared_payload_digest"`
	Offset                int64  `json:"offset"`
	File                  string `json:"file"`
}

func recordKey(id string) []byte {
	return []byte(recordKeyPrefix + id)
}

func putCollectedRecord(s Store, id string, r collectedRecord) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("verify: marshal collected record: %w", err)
	}
	return s.Put(recordKey(id), b)
}

func getCollectedRecord(s Store, id string) (collectedRecord, bool, error) {
	b, err := s.Get(recordKey(id))
	if err != nil {
		if err == ErrNotFound {
			return collectedRecord{}, false, nil
		}
		return collectedRecord{}, false, err
	}
	if b == nil {
		return collectedRecord{}, false, nil
	}
	var r collectedRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return collectedRecord{}, false, fmt.Errorf("verify: unmarshal collected record: %w", err)
	}
	return r, true, nil
}
