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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFixedNow(t *testing.T, ts time.Time) {
	t.Helper()
	orig := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = orig })
}

// writeTestRecord fills in Content-Length and a matching CRC32 so
// WriteRecord's digest checks pass, the way writeWarcinfoLocked does for
// the automatic warcinfo record.
func writeTestRecord(t *testing.T, w *WarcFileWriter, fields WarcFields, block []byte) WriteResult {
	t.Helper()
	fields.Set(ContentLength, fmt.Sprintf("%d", len(block)))
	acc := NewChecksumAccumulator()
	acc.Write(block)
	result, err := w.WriteRecord(V1_1, fields, block, acc.Sum(), HasCRC32)
	require.NoError(t, err)
	return result
}

func readAllRecords(t *testing.T, path string) []DecoderEvent {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	dec := NewPushDecoder(path, DefaultConfig())
	_, err = dec.Write(data)
	require.NoError(t, err)
	require.NoError(t, dec.WriteEOF())
	events, err := dec.Events()
	require.NoError(t, err)
	return events
}

func fieldsFromHeaderEvents(events []DecoderEvent, idx int) WarcFields {
	return events[idx].Fields
}

func TestWarcFileWriterWritesAndClosesCleanly(t *testing.T) {
	dir := t.TempDir()
	withFixedNow(t, time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC))

	w := NewWarcFileWriter(DefaultConfig(), FileWriterOptions{
		NameGenerator: &PatternNameGenerator{Directory: dir, Prefix: "test-"},
	})

	fields := WarcFields{}
	fields.Add(WarcRecordID, "<urn:uuid:rec-1>")
	fields.Add(WarcType, "resource")
	fields.Add(WarcDate, "2020-01-01T00:00:00Z")
	fields.Add(WarcTargetURI, "http://example.com/")
	fields.Add(ContentType, "text/plain")
	block := []byte("hello world")

	result := writeTestRecord(t, w, fields, block)
	assert.Equal(t, int64(0), result.FileOffset)
	assert.Greater(t, result.BytesWritten, int64(0))

	// While the file is open it must carry the .open suffix and must not
	// yet exist under its final name.
	openPath := filepath.Join(dir, result.FileName+".open")
	_, err := os.Stat(openPath)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, result.FileName))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, w.Close())

	_, err = os.Stat(openPath)
	assert.True(t, os.IsNotExist(err), "open-suffixed file must be gone after Close")
	finalPath := filepath.Join(dir, result.FileName)
	_, err = os.Stat(finalPath)
	require.NoError(t, err)

	events := readAllRecords(t, finalPath)
	require.NotEmpty(t, events)
	require.Equal(t, EventHeader, events[1].Kind)
	assert.Equal(t, "resource", fieldsFromHeaderEvents(events, 1).Get(WarcType))
}

func TestWarcFileWriterRollsOverOnMaxFileSize(t *testing.T) {
	dir := t.TempDir()
	withFixedNow(t, time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC))

	w := NewWarcFileWriter(DefaultConfig(), FileWriterOptions{
		MaxFileSize:   1,
		NameGenerator: &PatternNameGenerator{Directory: dir, Prefix: "test-"},
	})

	fields := WarcFields{}
	fields.Add(WarcRecordID, "<urn:uuid:rec-1>")
	fields.Add(WarcType, "resource")
	fields.Add(WarcDate, "2020-01-01T00:00:00Z")
	fields.Add(ContentType, "text/plain")
	first := writeTestRecord(t, w, fields, []byte("first"))

	fields2 := WarcFields{}
	fields2.Add(WarcRecordID, "<urn:uuid:rec-2>")
	fields2.Add(WarcType, "resource")
	fields2.Add(WarcDate, "2020-01-01T00:00:01Z")
	fields2.Add(ContentType, "text/plain")
	second := writeTestRecord(t, w, fields2, []byte("second"))

	assert.NotEqual(t, first.FileName, second.FileName, "a record exceeding MaxFileSize must trigger rollover to a new file")
	require.NoError(t, w.Close())
}

func TestWarcFileWriterAutoWarcinfoBacklinksRecords(t *testing.T) {
	dir := t.TempDir()
	withFixedNow(t, time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC))

	warcinfoFields := WarcFields{}
	warcinfoFields.Add("software", "warc-test/1.0")

	w := NewWarcFileWriter(DefaultConfig(), FileWriterOptions{
		NameGenerator:  &PatternNameGenerator{Directory: dir, Prefix: "test-"},
		WarcinfoFields: warcinfoFields,
	})

	fields := WarcFields{}
	fields.Add(WarcRecordID, "<urn:uuid:rec-1>")
	fields.Add(WarcType, "resource")
	fields.Add(WarcDate, "2020-01-01T00:00:00Z")
	fields.Add(ContentType, "text/plain")
	result := writeTestRecord(t, w, fields, []byte("hello"))
	require.NoError(t, w.Close())

	events := readAllRecords(t, filepath.Join(dir, result.FileName))

	var headers []WarcFields
	for _, ev := range events {
		if ev.Kind == EventHeader {
			headers = append(headers, ev.Fields)
		}
	}
	require.Len(t, headers, 2, "expected an auto-generated warcinfo record ahead of the caller's record")
	assert.Equal(t, "warcinfo", headers[0].Get(WarcType))
	assert.True(t, headers[0].Has("software"))
	assert.Equal(t, "warc-test/1.0", headers[0].Get("software"))

	warcinfoID := headers[0].Get(WarcRecordID)
	require.NotEmpty(t, warcinfoID)
	assert.Equal(t, warcinfoID, headers[1].Get(WarcWarcinfoID))
}
