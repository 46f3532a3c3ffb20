package actor

import btclog "github.com/btcsuite/btclog/v2"

// log is the package-wide logger for the actor runtime. It defaults to a
// disabled logger so the package is silent until a hosting program calls
// UseLogger, matching the daemon's expectation in cmd/relayd/main.go.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the logger used by this package. Should be called before
// any actor system is started.
func UseLogger(logger btclog.Logger) {
	log = logger
}
