package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// HashWeights computes the deterministic SHA-256 digest of the policy
// content, hex encoded. encoding/json marshals map keys in sorted order,
// so the digest is stable across processes for equal content.
func HashWeights(w Weights) string {
	data, err := json.Marshal(w)
	if err != nil {
		// Weights contains only maps of float64; marshaling cannot fail
		// for finite values. NaN/Inf would fail, and a policy carrying
		// them is invalid anyway.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ContractHash is the digest of the policy schema itself: the set of
// weight groups a policy document carries. Proposals record the contract
// hash they were built against; the governance lock refuses to apply a
// proposal whose contract no longer matches the running service.
func ContractHash() string {
	schema := []string{
		"tierWeights",
		"horizonWeights",
		"regimeMultipliers",
		"divergencePenalties",
		"phaseGradeMultipliers",
	}
	h := sha256.New()
	for _, field := range schema {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
