package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

// BacktestRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(symbol|interval|strategy_id|commission_rate|initial_capital|start_ms|end_ms|bar_count)
// Returns hex-encoded hash (64 characters).
func BacktestRunID(
	symbol string,
	interval string,
	strategyID string,
	commissionRate float64,
	initialCapital float64,
	startMs int64,
	endMs int64,
	barCount int,
) string {
	data := fmt.Sprintf("%s|%s|%s|%g|%g|%d|%d|%d",
		symbol,
		interval,
		strategyID,
		commissionRate,
		initialCapital,
		startMs,
		endMs,
		barCount,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ShortRunID renders the first 16 bytes of a hex run_id in base58
// for reports and log lines. Input that is not hex is returned unchanged.
func ShortRunID(runID string) string {
	raw, err := hex.DecodeString(runID)
	if err != nil || len(raw) == 0 {
		return runID
	}
	if len(raw) > 16 {
		raw = raw[:16]
	}
	return base58.Encode(raw)
}
