// Package version carries the build identity stamped into the hotpath binary.
package version

import "github.com/fatih/color"

// The git and date fields are overridden at release time through -ldflags;
// their empty defaults mark a from-source development build.
var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	// Version is the engine's semantic version.
	Version = versionMajorColor.Sprint("0") + "." + versionMinorColor.Sprint("1") + "." + versionPatchColor.Sprint("0") + "-dev"

	// GitCommit identifies the commit the binary was built from.
	GitCommit = ""

	// GitMessage is the subject line of that commit.
	GitMessage = ""

	// BuildDate is the build timestamp in ISO-8601.
	BuildDate = ""
)
