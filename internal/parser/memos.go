package parser

import (
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
)

// maxClientLen bounds the client string taken from a memo.
const maxClientLen = 100

var (
	hexMatch    = regexp.MustCompile(`^(0x)?[0-9A-Fa-f]+$`)
	base64Match = regexp.MustCompile(`^(?:[A-Za-z0-9+/]{4})*(?:[A-Za-z0-9+/]{2}==|[A-Za-z0-9+/]{3}=|[A-Za-z0-9+/]{4})$`)
)

const (
	encodingHex    = "hex"
	encodingBase64 = "base64"
)

// decodeMemoField tries hex, then base64. It returns the input unchanged, with
// an empty encoding, when neither yields valid UTF-8.
func decodeMemoField(s string) (string, string) {
	if s == "" {
		return s, ""
	}
	if hexMatch.MatchString(s) {
		if b, err := hex.DecodeString(strings.TrimPrefix(s, "0x")); err == nil && utf8.Valid(b) {
			return string(b), encodingHex
		}
	}
	if base64Match.MatchString(s) {
		if b, err := base64.StdEncoding.DecodeString(s); err == nil && utf8.Valid(b) {
			return string(b), encodingBase64
		}
	}
	return s, ""
}

func memoFields(tx *ledger.Transaction) []ledger.Fields {
	list, _ := tx.Fields["Memos"].([]any)
	out := make([]ledger.Fields, 0, len(list))
	for _, m := range list {
		out = append(out, ledger.AsFields(m).Object("Memo"))
	}
	return out
}

// Memos decodes every memo attached to a transaction, whatever its result.
func Memos(tx *ledger.Transaction) ([]Memo, error) {
	var list []Memo
	for i, m := range memoFields(tx) {
		if m == nil {
			continue
		}
		memo := Memo{
			TxRef:          txRef(tx),
			MemoIndex:      i,
			Account:        tx.Account,
			Destination:    tx.Fields.String("Destination"),
			DestinationTag: optUint32(tx.Fields, "DestinationTag"),
			SourceTag:      optUint32(tx.Fields, "SourceTag"),
			Format:         m.String("MemoFormat"),
		}
		memo.Data, memo.Encoding = decodeMemoField(m.String("MemoData"))
		memo.Type, memo.TypeEncoding = decodeMemoField(m.String("MemoType"))
		list = append(list, memo)
	}
	return list, nil
}

// Client returns the submitting client's name from a memo of type "client",
// read from its data or, failing that, its format.
func Client(tx *ledger.Transaction) string {
	for _, m := range memoFields(tx) {
		if m == nil {
			continue
		}
		typ, enc := decodeMemoField(m.String("MemoType"))
		if enc == "" || strings.ToLower(typ) != "client" {
			continue
		}

		raw := m.String("MemoData")
		if raw == "" {
			raw = m.String("MemoFormat")
		}
		client, enc := decodeMemoField(raw)
		if enc == "" {
			continue
		}
		if len(client) > maxClientLen {
			client = truncateUTF8(client, maxClientLen)
		}
		return client
	}
	return ""
}

func truncateUTF8(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
