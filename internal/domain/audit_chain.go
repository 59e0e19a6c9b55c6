package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// AuditZeroHash is the PrevHash of the first event of every document chain.
const AuditZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// DetailsHash hashes the JSON form of the event details. Diff keys are
// emitted in sorted order, so the encoding is stable across stores.
func DetailsHash(event AuditEvent) (string, error) {
	raw, err := json.Marshal(event.Details)
	if err != nil {
		return "", err
	}
	return sha256Hex(raw), nil
}

// ComputeAuditHash returns the chain hash for event. Seq, PrevHash and
// CreatedAt must already be assigned.
func ComputeAuditHash(event AuditEvent) (string, error) {
	if event.DocumentID == "" || event.EventType == "" {
		return "", errors.New("audit event missing document_id or event_type")
	}
	if event.PrevHash == "" {
		return "", errors.New("audit event missing prev_hash")
	}
	detailsHash, err := DetailsHash(event)
	if err != nil {
		return "", err
	}
	targets := make([]string, 0, len(event.Targets))
	for _, target := range event.Targets {
		targets = append(targets, string(target.Type)+":"+target.ID)
	}
	payload := chainPayload{
		Version:     AuditChainVersion,
		DocumentID:  event.DocumentID,
		Seq:         event.Seq,
		EventType:   string(event.EventType),
		ActorID:     event.ActorID,
		Targets:     strings.Join(targets, ","),
		Result:      string(event.Result),
		ErrorCode:   event.ErrorCode,
		DetailsHash: detailsHash,
		PrevHash:    event.PrevHash,
		CreatedAt:   event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	return sha256Hex(payload.CanonicalJSON()), nil
}

func sha256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

type chainPayload struct {
	Version     string
	DocumentID  string
	Seq         int64
	EventType   string
	ActorID     string
	Targets     string
	Result      string
	ErrorCode   string
	DetailsHash string
	PrevHash    string
	CreatedAt   string
}

// CanonicalJSON writes keys in lexical order with no whitespace.
func (c chainPayload) CanonicalJSON() []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	writeKV(buf, "actor_id", c.ActorID, false)
	writeKV(buf, "created_at", c.CreatedAt, false)
	writeKV(buf, "details_hash", c.DetailsHash, false)
	writeKV(buf, "document_id", c.DocumentID, false)
	writeKV(buf, "error_code", c.ErrorCode, false)
	writeKV(buf, "event_type", c.EventType, false)
	writeKV(buf, "prev_hash", c.PrevHash, false)
	writeKV(buf, "result", c.Result, false)
	writeKVNumber(buf, "seq", c.Seq, false)
	writeKV(buf, "targets", c.Targets, false)
	writeKV(buf, "v", c.Version, true)
	buf.WriteByte('}')
	return buf.Bytes()
}

func writeKV(buf *bytes.Buffer, key, value string, last bool) {
	writeJSONString(buf, key)
	buf.WriteByte(':')
	writeJSONString(buf, value)
	if !last {
		buf.WriteByte(',')
	}
}

func writeKVNumber(buf *bytes.Buffer, key string, value int64, last bool) {
	writeJSONString(buf, key)
	buf.WriteByte(':')
	buf.WriteString(strconv.FormatInt(value, 10))
	if !last {
		buf.WriteByte(',')
	}
}

func writeJSONString(buf *bytes.Buffer, value string) {
	buf.WriteByte('"')
	for _, r := range value {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexLower[r>>4])
				buf.WriteByte(hexLower[r&0x0f])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

var hexLower = []byte("0123456789abcdef")
