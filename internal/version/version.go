package version

// Overridden at build time with -ldflags "-X github.com/julo/lendcore/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
)
