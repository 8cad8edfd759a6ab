package automation

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/MrSnakeDoc/sevasetu/internal/domain"
)

// InstallHint is shown by the health endpoint when no browser is available.
const InstallHint = "apt-get install -y chromium (or set SEVA_BROWSER_BIN to a Chrome/Chromium binary)"

// Capability reports whether bots can run in this process. A nil error means available.
type Capability interface {
	Check() error
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func() error

func (f CapabilityFunc) Check() error { return f() }

// Always is a capability that is always present.
var Always Capability = CapabilityFunc(func() error { return nil })

// BrowserCapability checks for a Chromium binary: bin when set, otherwise
// whatever the rod launcher can discover on this host.
func BrowserCapability(bin string) Capability {
	return CapabilityFunc(func() error {
		if bin != "" {
			info, err := os.Stat(bin)
			if err != nil {
				return fmt.Errorf("%w: browser binary %s: %v", domain.ErrAutomationUnavailable, bin, err)
			}
			if info.IsDir() {
				return fmt.Errorf("%w: browser binary %s is a directory", domain.ErrAutomationUnavailable, bin)
			}
			return nil
		}
		if _, ok := launcher.LookPath(); !ok {
			return fmt.Errorf("%w: no Chrome/Chromium found on this host", domain.ErrAutomationUnavailable)
		}
		return nil
	})
}

// IsUnavailable reports whether err is an unavailability error.
func IsUnavailable(err error) bool {
	return errors.Is(err, domain.ErrAutomationUnavailable)
}
