package shared

import "fmt"

// WarmupLockKey builds the redis key that keeps report warmup for one
// tenant on a single worker at a time.
func WarmupLockKey(subdomain string) string {
	return fmt.Sprintf("reports:warmup:%s:lock", subdomain)
}
