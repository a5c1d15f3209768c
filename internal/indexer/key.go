package indexer

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"strings"

	errors "github.com/frahmantamala/tonpay/internal"
)

const hashSize = 32

// bocMagic prefixes every serialized bag of cells.
var bocMagic = []byte{0xb5, 0xee, 0x9c, 0x72}

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// NormalizeKey turns a submitted transaction identifier into the canonical
// form used as the record key and in indexer requests: 64 lowercase hex chars.
// The same 32-byte hash is also accepted in standard or URL-safe base64.
// Serialized messages are rejected with ErrUnsupportedKeyFormat.
func NormalizeKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return "", errors.ErrInvalidTransactionKey
	}

	if decoded, err := hex.DecodeString(key); err == nil {
		switch {
		case len(decoded) == hashSize:
			return strings.ToLower(key), nil
		case isSerializedMessage(decoded):
			return "", errors.ErrUnsupportedKeyFormat
		default:
			return "", errors.ErrInvalidTransactionKey
		}
	}

	for _, enc := range base64Encodings {
		decoded, err := enc.DecodeString(key)
		if err != nil {
			continue
		}
		if len(decoded) == hashSize {
			return hex.EncodeToString(decoded), nil
		}
		if isSerializedMessage(decoded) {
			return "", errors.ErrUnsupportedKeyFormat
		}
	}

	return "", errors.ErrInvalidTransactionKey
}

func isSerializedMessage(b []byte) bool {
	return len(b) > hashSize || bytes.HasPrefix(b, bocMagic)
}
