package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codex-k8s/tool-batch-server/internal/constants"
)

// Key derives the cache key for a run of batch.
//
// correlation_id keys on the caller's id; arguments_hash keys on a hash of
// args; auto uses the correlation id when the caller supplied one and the
// hash otherwise. An empty key disables caching for the call.
func Key(batch, correlationID string, provided bool, args map[string]any, strategy string) (string, error) {
	var key string
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case constants.CacheKeyStrategyCorrelationID:
		key = correlationID
	case constants.CacheKeyStrategyArgumentsHash:
		hash, err := HashArguments(args)
		if err != nil {
			return "", err
		}
		key = hash
	case constants.CacheKeyStrategyAuto, "":
		if provided && correlationID != "" {
			key = correlationID
			break
		}
		hash, err := HashArguments(args)
		if err != nil {
			return "", err
		}
		key = hash
	default:
		return "", fmt.Errorf("unsupported cache key strategy: %s", strategy)
	}
	if strings.TrimSpace(key) == "" {
		return "", nil
	}
	return batch + ":" + key, nil
}

// HashArguments hashes the JSON form of args. encoding/json sorts map keys,
// so equal arguments hash equally regardless of map order.
func HashArguments(args map[string]any) (string, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("hash arguments: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
