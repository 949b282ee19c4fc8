// Package guard forces test mode before any package under test reads
// it. Blank-import it from tests whose packages would otherwise start
// runtime side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("LOKAPOS_TEST_MODE") == "" {
			_ = os.Setenv("LOKAPOS_TEST_MODE", "1")
		}
	})
}
