package security

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/wudi/pdfdissect/document"
	"github.com/wudi/pdfdissect/ir/raw"
	"github.com/wudi/pdfdissect/observability"
)

var (
	ErrNotEncrypted     = errors.New("document is not encrypted")
	ErrUnsupported      = errors.New("unsupported encryption")
	ErrAlreadyDecrypted = errors.New("node already decrypted")
	ErrEncryptDict      = errors.New("malformed Encrypt dictionary")
)

type cryptAlgo int

const (
	algoNone cryptAlgo = iota
	algoRC4
	algoAES
)

func (a cryptAlgo) String() string {
	switch a {
	case algoRC4:
		return "RC4"
	case algoAES:
		return "AES"
	}
	return "Identity"
}

// StandardHandler is the standard security handler, version 4 revision 4.
type StandardHandler struct {
	lengthBits  int
	owner       []byte
	user        []byte
	p           int32
	fileID      []byte
	encryptMeta bool
	streamAlgo  cryptAlgo
	stringAlgo  cryptAlgo

	key    []byte
	authed bool
}

// NewStandardHandler reads the Encrypt dictionary and the first file
// identifier from the trailer. No key is derived until Authenticate.
func NewStandardHandler(enc, trailer *raw.Node) (*StandardHandler, error) {
	if enc == nil || enc.Tag != raw.TagDictionary {
		return nil, errors.Wrap(ErrEncryptDict, "not a dictionary")
	}
	if f, ok := raw.LookupName(enc, "Filter"); ok && f != "Standard" {
		return nil, errors.Wrapf(ErrUnsupported, "security handler %s", f)
	}
	v, _ := raw.LookupInt(enc, "V")
	r, _ := raw.LookupInt(enc, "R")
	if v != 4 || r != 4 {
		return nil, errors.Wrapf(ErrUnsupported, "V %d R %d", v, r)
	}
	keyLen := int64(128)
	if n, ok := raw.LookupInt(enc, "Length"); ok && n > 0 {
		keyLen = n
	}
	if keyLen%8 != 0 || keyLen < 40 || keyLen > 128 {
		return nil, errors.Wrapf(ErrEncryptDict, "Length %d", keyLen)
	}
	owner, ok := stringEntry(enc, "O")
	if !ok || len(owner) < 32 {
		return nil, errors.Wrap(ErrEncryptDict, "O must be a string of at least 32 bytes")
	}
	user, _ := stringEntry(enc, "U")
	p, ok := raw.LookupInt(enc, "P")
	if !ok {
		return nil, errors.Wrap(ErrEncryptDict, "missing P")
	}

	h := &StandardHandler{
		lengthBits:  int(keyLen),
		owner:       owner[:32],
		user:        user,
		p:           int32(p),
		fileID:      firstFileID(trailer),
		encryptMeta: true,
	}
	if b, ok := raw.Lookup(enc, "EncryptMetadata"); ok {
		if val, isBool := b.Payload.(raw.Bool); isBool {
			h.encryptMeta = bool(val)
		}
	}

	filters, err := parseCryptFilters(enc)
	if err != nil {
		return nil, err
	}
	if h.streamAlgo, err = resolveCryptFilter(enc, "StmF", filters); err != nil {
		return nil, err
	}
	if h.stringAlgo, err = resolveCryptFilter(enc, "StrF", filters); err != nil {
		return nil, err
	}
	return h, nil
}

// Authenticate derives the file key from password and checks it against U.
// The key is kept whether or not the check passes.
func (h *StandardHandler) Authenticate(password string) bool {
	h.key = deriveKey([]byte(password), h.owner, h.p, h.fileID, h.lengthBits/8, h.encryptMeta)
	h.authed = checkUserPassword(h.key, h.user, h.fileID)
	return h.authed
}

// Key returns the file key derived by the last Authenticate call.
func (h *StandardHandler) Key() []byte { return h.key }

// EncryptMetadata reports whether metadata streams are encrypted.
func (h *StandardHandler) EncryptMetadata() bool { return h.encryptMeta }

// ObjectKey returns the key for the strings and streams of object id.
func (h *StandardHandler) ObjectKey(id raw.ObjectID) []byte {
	return objectKey(h.key, id.Num, id.Gen)
}

// DecryptString decrypts one string payload of object id. RC4 strings are
// decrypted whole, trailing CR-LF included, unlike stream data.
// AES strings lose a trailing EOL only when that leaves whole blocks.
func (h *StandardHandler) DecryptString(id raw.ObjectID, data []byte) ([]byte, error) {
	if h.stringAlgo == algoAES {
		data = alignBlock(data)
	}
	return h.decrypt(h.stringAlgo, id, data)
}

// DecryptStream decrypts one stream payload of object id. RC4 data drops a
// trailing CR-LF; AES data drops a trailing EOL only when that leaves whole
// blocks. DecryptNode cuts the payload to a direct Length first.
func (h *StandardHandler) DecryptStream(id raw.ObjectID, data []byte) ([]byte, error) {
	if h.streamAlgo == algoAES {
		data = alignBlock(data)
	} else {
		data = bytes.TrimSuffix(data, []byte("\r\n"))
	}
	return h.decrypt(h.streamAlgo, id, data)
}

func (h *StandardHandler) decrypt(algo cryptAlgo, id raw.ObjectID, data []byte) ([]byte, error) {
	if h.key == nil {
		h.Authenticate("")
	}
	switch algo {
	case algoRC4:
		return rc4Crypt(h.ObjectKey(id), data)
	case algoAES:
		return aesDecrypt(h.ObjectKey(id), data)
	}
	return data, nil
}

// deriveKey computes the file key: MD5 over the padded password, O, P,
// the file identifier and, when metadata is left in clear, four 0xFF bytes;
// then fifty MD5 rounds over the first n bytes.
func deriveKey(pwd, owner []byte, p int32, fileID []byte, n int, encryptMeta bool) []byte {
	data := make([]byte, 0, 32+len(owner)+4+len(fileID)+4)
	data = append(data, padPassword(pwd)...)
	data = append(data, owner...)
	var pBuf [4]byte
	binary.LittleEndian.PutUint32(pBuf[:], uint32(p))
	data = append(data, pBuf[:]...)
	data = append(data, fileID...)
	if !encryptMeta {
		data = append(data, 0xFF, 0xFF, 0xFF, 0xFF)
	}

	sum := md5.Sum(data)
	key := sum[:n]
	for i := 0; i < 50; i++ {
		sum = md5.Sum(key[:n])
		key = sum[:n]
	}
	return append([]byte(nil), key...)
}

var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func padPassword(pwd []byte) []byte {
	padded := make([]byte, 32)
	n := copy(padded, pwd)
	copy(padded[n:], passwordPadding)
	return padded
}

func checkUserPassword(key, userEntry, fileID []byte) bool {
	h := md5.Sum(append(append([]byte(nil), passwordPadding...), fileID...))
	val := h[:]
	tmp := make([]byte, len(key))
	for i := 0; i < 20; i++ {
		for j := range key {
			tmp[j] = key[j] ^ byte(i)
		}
		val = rc4Simple(tmp, val)
	}
	return len(userEntry) >= 16 && bytes.Equal(val[:16], userEntry[:16])
}

func objectKey(fileKey []byte, num, gen int) []byte {
	key := make([]byte, 0, len(fileKey)+9)
	key = append(key, fileKey...)
	key = append(key, byte(num), byte(num>>8), byte(num>>16))
	key = append(key, byte(gen), byte(gen>>8))
	key = append(key, 0x73, 0x41, 0x6C, 0x54) // sAlT
	hash := md5.Sum(key)
	n := len(fileKey) + 5
	if n > 16 {
		n = 16
	}
	return hash[:n]
}

func parseCryptFilters(enc *raw.Node) (map[string]cryptAlgo, error) {
	out := make(map[string]cryptAlgo)
	cf, ok := raw.Lookup(enc, "CF")
	if !ok {
		return out, nil
	}
	if cf.Tag != raw.TagDictionary {
		return nil, errors.Wrap(ErrEncryptDict, "CF must be a dictionary")
	}
	for _, entry := range cf.Children {
		name, _ := raw.EntryKey(entry)
		val := raw.EntryValue(entry)
		if val == nil || val.Tag != raw.TagDictionary {
			return nil, errors.Wrapf(ErrEncryptDict, "crypt filter %s must be a dictionary", name)
		}
		algo := algoAES
		if cfm, ok := raw.LookupName(val, "CFM"); ok {
			switch cfm {
			case "V2":
				algo = algoRC4
			case "AESV2":
				algo = algoAES
			case "None":
				algo = algoNone
			default:
				return nil, errors.Wrapf(ErrUnsupported, "crypt filter method %s", cfm)
			}
		}
		out[name] = algo
	}
	return out, nil
}

func resolveCryptFilter(enc *raw.Node, key string, filters map[string]cryptAlgo) (cryptAlgo, error) {
	name, ok := raw.LookupName(enc, key)
	if !ok {
		if algo, ok := filters["StdCF"]; ok {
			return algo, nil
		}
		return algoAES, nil
	}
	if name == "Identity" {
		return algoNone, nil
	}
	if algo, ok := filters[name]; ok {
		return algo, nil
	}
	return algoNone, errors.Wrapf(ErrEncryptDict, "%s names undefined crypt filter %s", key, name)
}

func stringEntry(d *raw.Node, key string) ([]byte, bool) {
	v, ok := raw.Lookup(d, key)
	if !ok || v.Tag != raw.TagString {
		return nil, false
	}
	return v.Bytes()
}

func firstFileID(trailer *raw.Node) []byte {
	ids, ok := raw.Lookup(trailer, "ID")
	if !ok || ids.Tag != raw.TagArray || len(ids.Children) == 0 {
		return nil
	}
	b, _ := ids.Children[0].Bytes()
	return b
}

// Config controls Decrypt.
type Config struct {
	// Password is the user password; empty by default.
	Password    string
	Logger      observability.Logger
	Diagnostics *observability.Diagnostics
}

// Report summarizes a Decrypt run.
type Report struct {
	Authenticated bool
	Strings       int
	Streams       int
	Failed        int
}

// IsEncrypted reports whether the trailer names an Encrypt dictionary.
func IsEncrypted(g *document.Graph) bool {
	trailer, err := g.Trailer()
	if err != nil {
		return false
	}
	_, ok := raw.Lookup(trailer, "Encrypt")
	return ok
}
