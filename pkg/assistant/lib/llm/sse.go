// Copyright 2025 Justin P Barnett
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// maxEventSize caps a single SSE event at 64KB. A provider emitting anything
// larger per delta is misbehaving.
const maxEventSize = 64 * 1024

// sseReader parses Server-Sent Events from a provider response body.
type sseReader struct {
	reader *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{reader: bufio.NewReader(r)}
}

// next reads the next SSE event, returning its event type (often empty) and
// joined data payload. Returns io.EOF when the stream ends.
func (s *sseReader) next() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte
	var size int

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return "", nil, err
		}

		line = bytes.TrimRight(line, "\r\n")
		if err == io.EOF {
			if bytes.HasPrefix(line, []byte("data:")) {
				dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
			}
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			return "", nil, io.EOF
		}

		// Blank line terminates the event.
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[6:]))
		case bytes.HasPrefix(line, []byte("data:")):
			data := bytes.TrimSpace(line[5:])
			dataLines = append(dataLines, data)
			size += len(data)
			if size > maxEventSize {
				return "", nil, fmt.Errorf("sse event exceeds %d bytes", maxEventSize)
			}
		}
		// id:, retry: and comment lines are ignored.
	}
}
