package router

import "time"

// availability.go makes explicit the liveness rule stated in
// prose: a "thin" client is available only within the configured liveness
// window of its last observed activity; every other ClientInfo variant is
// always available while it holds a current binding.
var alwaysAvailable = map[ClientKind]bool{
	KindThick:  true,
	KindServer: true,
	KindFile:   true,
}

func isAvailable(kind ClientKind, lastSeen time.Time, liveness time.Duration) bool {
	if alwaysAvailable[kind] {
		return true
	}
	return time.Since(lastSeen) <= liveness
}
