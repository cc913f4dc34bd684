package casregistry

// Usage declares which kinds of binaries a backend is meant for. Backends are
// linked at build time: each registers itself in init() and becomes available
// to a binary only when that binary imports the backend package.
type Usage uint8

const (
	// UsageCLI marks a backend for short-lived command-line programs.
	UsageCLI Usage = 1 << iota
	// UsageDaemon marks a backend for long-running servers such as bpi-casgrpcd.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
