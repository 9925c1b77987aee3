package confidential

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"lukechampine.com/uint128"
)

var (
	ErrUnsupportedHandle = errors.New("unsupported encrypted handle encoding")
	ErrMissingHandle     = errors.New("missing encrypted handle")
)

// Handle references an encrypted value held by the covalidator network. On chain
// it is a little-endian u128.
type Handle struct {
	v uint128.Uint128
}

func HandleFrom64(v uint64) Handle { return Handle{v: uint128.From64(v)} }

func HandleFromUint128(v uint128.Uint128) Handle { return Handle{v: v} }

func (h Handle) Uint128() uint128.Uint128 { return h.v }
func (h Handle) Big() *big.Int            { return h.v.Big() }
func (h Handle) String() string           { return h.v.String() }
func (h Handle) IsZero() bool             { return h.v.IsZero() }

// Bytes returns the 16-byte little-endian encoding used in account data.
func (h Handle) Bytes() []byte {
	b := make([]byte, 16)
	h.v.PutBytes(b)
	return b
}

func (h Handle) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.v.String())
}

func (h *Handle) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	decoded, err := DecodeHandle(raw)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// DecodeHandle normalizes the encodings a handle shows up in (decimal string,
// JSON number, integer, big.Int, little-endian bytes, {"u128": ...}) into a
// Handle. Anything else is rejected with ErrUnsupportedHandle.
func DecodeHandle(v any) (Handle, error) {
	switch x := v.(type) {
	case nil:
		return Handle{}, ErrMissingHandle
	case Handle:
		return x, nil
	case *Handle:
		if x == nil {
			return Handle{}, ErrMissingHandle
		}
		return *x, nil
	case uint128.Uint128:
		return Handle{v: x}, nil
	case string:
		return handleFromDecimal(x)
	case json.Number:
		return handleFromDecimal(x.String())
	case *big.Int:
		if x == nil {
			return Handle{}, ErrMissingHandle
		}
		return handleFromBig(x)
	case uint64:
		return HandleFrom64(x), nil
	case uint32:
		return HandleFrom64(uint64(x)), nil
	case uint:
		return HandleFrom64(uint64(x)), nil
	case int:
		return handleFromInt(int64(x))
	case int64:
		return handleFromInt(x)
	case float64:
		if x < 0 || x != math.Trunc(x) || x > (1<<53) {
			return Handle{}, fmt.Errorf("%w: float %v is not an exact non-negative integer", ErrUnsupportedHandle, x)
		}
		return HandleFrom64(uint64(x)), nil
	case []byte:
		return handleFromLE(x)
	case [16]byte:
		return handleFromLE(x[:])
	case map[string]any:
		inner, ok := x["u128"]
		if !ok {
			return Handle{}, fmt.Errorf("%w: object without u128 field", ErrUnsupportedHandle)
		}
		return DecodeHandle(inner)
	default:
		return Handle{}, fmt.Errorf("%w: %T", ErrUnsupportedHandle, v)
	}
}

func handleFromDecimal(s string) (Handle, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Handle{}, ErrMissingHandle
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Handle{}, fmt.Errorf("%w: %q is not a decimal integer", ErrUnsupportedHandle, s)
	}
	return handleFromBig(n)
}

func handleFromBig(n *big.Int) (Handle, error) {
	if n.Sign() < 0 || n.BitLen() > 128 {
		return Handle{}, fmt.Errorf("%w: %s is outside u128", ErrUnsupportedHandle, n)
	}
	return Handle{v: uint128.FromBig(n)}, nil
}

func handleFromInt(v int64) (Handle, error) {
	if v < 0 {
		return Handle{}, fmt.Errorf("%w: negative value %d", ErrUnsupportedHandle, v)
	}
	return HandleFrom64(uint64(v)), nil
}

func handleFromLE(b []byte) (Handle, error) {
	if len(b) == 0 {
		return Handle{}, ErrMissingHandle
	}
	if len(b) > 16 {
		return Handle{}, fmt.Errorf("%w: %d bytes exceeds u128", ErrUnsupportedHandle, len(b))
	}
	buf := make([]byte, 16)
	copy(buf, b)
	return Handle{v: uint128.FromBytes(buf)}, nil
}

// Ciphertext is the opaque output of Encrypt, passed verbatim to instructions.
type Ciphertext []byte

func (c Ciphertext) Hex() string { return hex.EncodeToString(c) }

func (c Ciphertext) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Hex())
}

func (c *Ciphertext) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCiphertext(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCiphertext decodes a hex ciphertext, with or without a 0x prefix.
func ParseCiphertext(s string) (Ciphertext, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("decode ciphertext: empty")
	}
	return Ciphertext(b), nil
}
