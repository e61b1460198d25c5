// Package version reports which build of the rack tools is running.
package version

import "runtime/debug"

// Version can be set at build time:
//
//	go build -ldflags "-X github.com/vsariola/rack/version.Version=$(git describe --dirty)"
var Version string

// Hash is the short VCS revision of the build, with a -dirty suffix for
// modified trees. It is empty when the binary carries no VCS information.
var Hash = revision()

var VersionOrHash = func() string {
	if Version != "" {
		return Version
	}
	return Hash
}()

// String returns VersionOrHash followed by the Go toolchain version.
func String() string {
	v := VersionOrHash
	if v == "" {
		v = "(devel)"
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.GoVersion != "" {
		return v + " " + info.GoVersion
	}
	return v
}

func revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	rev := settings["vcs.revision"]
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if rev != "" && settings["vcs.modified"] == "true" {
		rev += "-dirty"
	}
	return rev
}
