package manifest

import "runtime"

// Rule allows or disallows a library, optionally for one OS only.
type Rule struct {
	Action string  `json:"action"`
	OS     *OSRule `json:"os,omitempty"`
}

// OSRule restricts a Rule to an operating system.
type OSRule struct {
	Name string `json:"name,omitempty"`
	Arch string `json:"arch,omitempty"`
}

// CurrentOS returns the manifest name of the running operating system.
func CurrentOS() string {
	return OSName(runtime.GOOS)
}

// OSName maps a GOOS value to the name used in library rules.
func OSName(goos string) string {
	switch goos {
	case "darwin":
		return "osx"
	default:
		return goos
	}
}

// Allowed evaluates the library rules for osName. A library without rules is
// always allowed; otherwise the last rule that applies decides and the
// default is disallow.
func (l Library) Allowed(osName string) bool {
	if len(l.Rules) == 0 {
		return true
	}
	allowed := false
	for _, r := range l.Rules {
		if r.OS != nil && r.OS.Name != "" && r.OS.Name != osName {
			continue
		}
		allowed = r.Action == "allow"
	}
	return allowed
}

// AllowedLibraries returns the libraries of v that apply to osName and carry
// a downloadable artifact.
func (v *Version) AllowedLibraries(osName string) []Library {
	out := make([]Library, 0, len(v.Libraries))
	for _, lib := range v.Libraries {
		if lib.Downloads.Artifact == nil || lib.Downloads.Artifact.URL == "" {
			continue
		}
		if !lib.Allowed(osName) {
			continue
		}
		out = append(out, lib)
	}
	return out
}
