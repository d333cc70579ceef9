package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return HashBytes(data), nil
}

// HashBytes returns the hex BLAKE3 digest of data.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// workerCacheInputs are the only options baked into cached engine instances.
type workerCacheInputs struct {
	DisableEslintIgnore       bool     `json:"disableEslintIgnore"`
	RulesToDisableWhileFixing []string `json:"rulesToDisableWhileFixing"`
}

// WorkerCacheDigest hashes the options that a worker bakes into its cached
// engine instances. Two snapshots with equal digests can share a cache.
func WorkerCacheDigest(o Options) string {
	rules := o.Autofix.RulesToDisableWhileFixing
	if rules == nil {
		rules = []string{}
	}
	data, _ := json.Marshal(workerCacheInputs{
		DisableEslintIgnore:       o.Advanced.DisableEslintIgnore,
		RulesToDisableWhileFixing: rules,
	})
	return HashBytes(data)
}

// ShouldInvalidateWorkerCache reports whether moving from prev to cur requires
// the worker to drop its engine cache.
func ShouldInvalidateWorkerCache(prev, cur Options) bool {
	return WorkerCacheDigest(prev) != WorkerCacheDigest(cur)
}
