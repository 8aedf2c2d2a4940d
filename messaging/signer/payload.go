package signer

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Crackloss/nostrweb/engine/library"
	"github.com/klauspost/compress/gzip"
	"github.com/nbd-wtf/go-nostr"
)

// CompressedPrefix marks a payload of base64(gzip(json)).
const CompressedPrefix = "Signer1"

const maxPayload = 1 << 20

// DecodeSignedPayload tries, in order: percent-decoded JSON, raw JSON, and the compressed
// form. The first decoding that yields a JSON object decides; it must carry a sig.
func DecodeSignedPayload(raw string) (*nostr.Event, error) {
	evt, ok := decodePayload(raw)
	if !ok {
		return nil, library.ErrSignerPayloadUnrecognized
	}
	if evt.Sig == "" {
		return nil, fmt.Errorf("%w: missing sig", library.ErrSignerPayloadUnrecognized)
	}
	return evt, nil
}

func decodePayload(raw string) (*nostr.Event, bool) {
	if unescaped, err := url.PathUnescape(raw); err == nil {
		if evt, ok := parseEvent([]byte(unescaped)); ok {
			return evt, true
		}
	}
	if evt, ok := parseEvent([]byte(raw)); ok {
		return evt, true
	}
	if strings.HasPrefix(raw, CompressedPrefix) {
		return decodeCompressed(raw[len(CompressedPrefix):])
	}
	return nil, false
}

func parseEvent(b []byte) (*nostr.Event, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil, false
	}
	var evt nostr.Event
	if err := json.Unmarshal(b, &evt); err != nil {
		return nil, false
	}
	return &evt, true
}

func decodeCompressed(b64 string) (*nostr.Event, bool) {
	if unescaped, err := url.PathUnescape(b64); err == nil {
		b64 = unescaped
	}
	var blob []byte
	var err error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if blob, err = enc.DecodeString(b64); err == nil {
			break
		}
	}
	if err != nil {
		return nil, false
	}
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, false
	}
	defer zr.Close()
	text, err := io.ReadAll(io.LimitReader(zr, maxPayload))
	if err != nil {
		return nil, false
	}
	return parseEvent(text)
}
