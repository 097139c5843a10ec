// ABOUTME: Build identity for the player and producer
// ABOUTME: Version is overridden at link time with -ldflags "-X"
package version

// Version is the release string, "dev" for local builds
var Version = "dev"

const (
	// Product names the binaries in logs and the UI header
	Product = "voicestage"
	// Manufacturer is reported alongside the product
	Manufacturer = "lanlan-project"
)

// String renders the product and version for banners
func String() string {
	return Product + " " + Version
}
