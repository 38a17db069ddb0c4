// Package testing switches the application into test mode for packages that
// blank-import it.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("PAYMENTS_TEST_MODE", "1")
		if os.Getenv("COUNTRY_API_URL") == "" {
			_ = os.Setenv("COUNTRY_API_URL", "http://127.0.0.1:0")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
