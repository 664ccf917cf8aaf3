// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package media contains the local media handling of the studio: data URI
// encoding of images and audio, MIME sniffing, downloads of generated clips
// and the ffmpeg invocations used for frame extraction and concatenation.
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/h2non/filetype"
)

// ErrInvalidDataURI is returned for strings that are not base64 data URIs.
var ErrInvalidDataURI = errors.New("invalid data uri")

// DataURI encodes data as a base64 data URI.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURI decodes a base64 data URI into its MIME type and bytes.
func ParseDataURI(s string) (string, []byte, error) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, ErrInvalidDataURI
	}
	header, payload, found := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !found || !strings.HasSuffix(header, ";base64") {
		return "", nil, ErrInvalidDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	mimeType := strings.TrimSuffix(header, ";base64")
	if mimeType == "" {
		mimeType = SniffMIME(data, "application/octet-stream")
	}
	return mimeType, data, nil
}

// StripDataURIPrefix returns the base64 payload of a data URI, or s unchanged
// when it is not one.
func StripDataURIPrefix(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if _, payload, found := strings.Cut(s, ","); found {
		return payload
	}
	return s
}

// DecodeImage accepts raw base64 or a data URI and returns the image MIME type
// and bytes. Raw base64 is sniffed and defaults to image/jpeg.
func DecodeImage(s string) (string, []byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil, fmt.Errorf("%w: empty image", ErrInvalidDataURI)
	}
	if strings.HasPrefix(s, "data:") {
		return ParseDataURI(s)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid base64 image: %v", ErrInvalidDataURI, err)
	}
	return SniffMIME(data, "image/jpeg"), data, nil
}

// SniffMIME detects the MIME type of data from its magic bytes.
func SniffMIME(data []byte, fallback string) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return fallback
	}
	return kind.MIME.Value
}

// ExtensionFor returns the file extension (without dot) for data, or fallback.
func ExtensionFor(data []byte, fallback string) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return fallback
	}
	return kind.Extension
}
