package avatar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

const defaultStaticBase = "https://api.dicebear.com/9.x/fun-emoji/svg"

// Static hands out deterministic placeholder images seeded by the prompt.
// It is used when no upstream credentials are configured.
type Static struct {
	Base string
}

// Generate returns the placeholder URL for prompt.
func (s Static) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	base := s.Base
	if base == "" {
		base = defaultStaticBase
	}
	return base + "?seed=" + url.QueryEscape(promptKey(prompt)[:16]), nil
}

// promptKey is the stable hash of a prompt used for seeds and cache keys.
func promptKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
