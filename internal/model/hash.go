package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// DomainCondition prefixes condition digests. The version suffix allows the
// encoding to change without colliding with older digests.
const DomainCondition = "radcache/condition/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest returns a stable hex digest of the normalized key. It is safe to
// embed in file names.
func (k ConditionKey) Digest() string {
	n := k.Normalize()
	buf := make([]byte, 0, 64)
	buf = append(buf, n.PatientID...)
	buf = append(buf, 0x00)
	buf = strconv.AppendInt(buf, int64(n.NoduleID), 10)
	buf = append(buf, 0x00)
	buf = strconv.AppendInt(buf, int64(n.AnnotationID), 10)
	buf = append(buf, 0x00)
	buf = strconv.AppendInt(buf, int64(n.NumLevels), 10)
	buf = append(buf, 0x00)
	buf = strconv.AppendFloat(buf, n.NoiseScale, 'g', -1, 64)
	return hashWithDomain(DomainCondition, buf)
}
