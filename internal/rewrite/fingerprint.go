package rewrite

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
)

// Fingerprint identifies a script source snapshot. A cached artifact is only
// reusable while all three fields match the file on disk.
type Fingerprint struct {
	Hash  string `json:"hash"`
	Size  int64  `json:"size"`
	MTime int64  `json:"mtime"`
}

// Equal reports whether two fingerprints match exactly.
func (fp Fingerprint) Equal(other Fingerprint) bool {
	return fp.Hash == other.Hash && fp.Size == other.Size && fp.MTime == other.MTime
}

// FingerprintFile reads a script and computes its fingerprint in one pass.
// The source bytes are returned so callers do not read the file twice.
func FingerprintFile(path string) (Fingerprint, []byte, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Fingerprint{}, nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, nil, err
	}
	return fingerprintBytes(src, info), src, nil
}

func fingerprintBytes(src []byte, info fs.FileInfo) Fingerprint {
	sum := sha256.Sum256(src)
	return Fingerprint{
		Hash:  hex.EncodeToString(sum[:]),
		Size:  info.Size(),
		MTime: info.ModTime().UnixNano(),
	}
}
