package deadletter

import btclog "github.com/btcsuite/btclog/v2"

// log is the package-wide logger for the dead letter audit store. It
// defaults to a disabled logger until a hosting program calls UseLogger,
// mirroring the convention actor.UseLogger establishes.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
