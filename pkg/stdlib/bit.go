package stdlib

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"math/rand/v2"
	"strconv"
	"unicode/utf8"

	"github.com/segmentio/fasthash/fnv1a"
	"github.com/zeebo/blake3"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// registerBit registers the bit verb and its actions: code, decode, aes,
// demon, hash, checksum.
func (r *Registry) registerBit() {
	r.Register(token.Bit, bitVerb)
}

func bitVerb(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	t := peek(toks, j)
	switch t.Kind {
	case token.Code:
		bitNebc(h, i, toks, j, true)
	case token.Decode:
		bitNebc(h, i, toks, j, false)
	case token.Aes:
		bitAES(h, i, toks, j)
	case token.Demon:
		v, end := value(h, toks, j+1)
		bind(h, i, toks, end, demon(v))
	case token.Identifier:
		switch word(h, t) {
		case "hash":
			v, end := text(h, toks, j+1)
			bind(h, i, toks, end, blake3Hex(v))
		case "checksum":
			v, end := text(h, toks, j+1)
			bind(h, i, toks, end, strconv.FormatUint(fnv1a.HashString64(v), 16))
		default:
			abandon(i, toks)
		}
	default:
		abandon(i, toks)
	}
}

// bit code X with K nebc / bit decode X with K nebc
func bitNebc(h types.Host, i *int, toks []token.Token, j int, encode bool) {
	src, end := text(h, toks, j+1)
	if peek(toks, end+1).Kind != token.With {
		abandon(i, toks)
		return
	}
	key, end := text(h, toks, end+2)
	if peek(toks, end+1).Kind != token.Nebc {
		abandon(i, toks)
		return
	}
	bind(h, i, toks, end+1, nebc(src, key, encode))
}

// nebcStream is the keystream of the nebc cipher: an LCG seeded with the
// FNV-1a hash of the key.
type nebcStream struct{ state uint64 }

func (s *nebcStream) next() byte {
	s.state = s.state*6364136223846793005 + 1442695040888963407
	return byte((s.state ^ (s.state >> 18)) >> 27)
}

// nebc XORs text with the key stream. Encoding returns hex; decoding
// expects hex.
func nebc(src, key string, encode bool) string {
	stream := &nebcStream{state: fnv1a.HashString64(key)}
	var in []byte
	if encode {
		in = []byte(src)
	} else {
		b, err := hex.DecodeString(src)
		if err != nil {
			return "Error: Invalid Hex"
		}
		in = b
	}
	out := make([]byte, len(in))
	for k, b := range in {
		out[k] = b ^ stream.next()
	}
	if encode {
		return hex.EncodeToString(out)
	}
	if !utf8.Valid(out) {
		return "Error: Invalid UTF-8"
	}
	return string(out)
}

const demonAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*()"

// demon pads every character with two random ones.
func demon(s string) string {
	out := make([]rune, 0, utf8.RuneCountInString(s)*3)
	for _, c := range s {
		out = append(out, c,
			rune(demonAlphabet[rand.IntN(len(demonAlphabet))]),
			rune(demonAlphabet[rand.IntN(len(demonAlphabet))]))
	}
	return string(out)
}

func blake3Hex(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// bit aes encrypt|decrypt D key K iv V & set as {Out}
func bitAES(h types.Host, i *int, toks []token.Token, j int) {
	mode := peek(toks, j+1).Kind
	if mode != token.Encrypt && mode != token.Decrypt {
		abandon(i, toks)
		return
	}
	data, end := value(h, toks, j+2)
	if peek(toks, end+1).Kind != token.Key {
		abandon(i, toks)
		return
	}
	key, end := value(h, toks, end+2)
	if peek(toks, end+1).Kind != token.Iv {
		abandon(i, toks)
		return
	}
	iv, end := value(h, toks, end+2)
	if mode == token.Decrypt {
		bind(h, i, toks, end, aesDecrypt(data, key, iv))
		return
	}
	bind(h, i, toks, end, aesEncrypt(data, key, iv))
}

// aesMaterial zero-pads or truncates key to 32 bytes and iv to 16.
func aesMaterial(key, iv string) (cipher.Block, []byte) {
	k := make([]byte, 32)
	copy(k, key)
	v := make([]byte, aes.BlockSize)
	copy(v, iv)
	block, _ := aes.NewCipher(k)
	return block, v
}

// aesEncrypt is AES-256-CBC with PKCS#7 padding, returned as base64.
func aesEncrypt(data, key, iv string) string {
	block, v := aesMaterial(key, iv)
	pad := aes.BlockSize - len(data)%aes.BlockSize
	buf := append([]byte(data), bytes.Repeat([]byte{byte(pad)}, pad)...)
	cipher.NewCBCEncrypter(block, v).CryptBlocks(buf, buf)
	return base64.StdEncoding.EncodeToString(buf)
}

func aesDecrypt(data, key, iv string) string {
	buf, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "Error: Base64 Fail"
	}
	if len(buf) == 0 || len(buf)%aes.BlockSize != 0 {
		return "Error: Decrypt Fail"
	}
	block, v := aesMaterial(key, iv)
	cipher.NewCBCDecrypter(block, v).CryptBlocks(buf, buf)
	pad := int(buf[len(buf)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(buf) || !bytes.Equal(buf[len(buf)-pad:], bytes.Repeat([]byte{byte(pad)}, pad)) {
		return "Error: Decrypt Fail"
	}
	return string(buf[:len(buf)-pad])
}
