package version

// Set at build time via -ldflags "-X github.com/mykhaliev/llm-judge/version.Version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)
