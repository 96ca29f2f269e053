package manifest

// VersionIndex is the top-level listing of published game versions.
type VersionIndex struct {
	Latest   Latest       `json:"latest"`
	Versions []VersionRef `json:"versions"`
}

// Latest names the newest release and snapshot ids.
type Latest struct {
	Release  string `json:"release"`
	Snapshot string `json:"snapshot"`
}

// VersionRef points at a per-version document.
type VersionRef struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	Time            string `json:"time"`
	ReleaseTime     string `json:"releaseTime"`
	SHA1            string `json:"sha1,omitempty"`
	ComplianceLevel int    `json:"complianceLevel,omitempty"`
}

// Find returns the ref with the given id.
func (vi *VersionIndex) Find(id string) (VersionRef, bool) {
	for _, v := range vi.Versions {
		if v.ID == id {
			return v, true
		}
	}
	return VersionRef{}, false
}

// Version is the per-version document describing everything to install.
type Version struct {
	ID          string        `json:"id"`
	Type        string        `json:"type,omitempty"`
	AssetIndex  AssetIndexRef `json:"assetIndex"`
	Downloads   Downloads     `json:"downloads"`
	JavaVersion JavaVersion   `json:"javaVersion"`
	Libraries   []Library     `json:"libraries"`
}

// AssetIndexRef locates the asset index for a version.
type AssetIndexRef struct {
	ID        string `json:"id"`
	SHA1      string `json:"sha1"`
	Size      int64  `json:"size"`
	TotalSize int64  `json:"totalSize"`
	URL       string `json:"url"`
}

// Downloads holds the version's top-level artifacts.
type Downloads struct {
	Client Artifact `json:"client"`
}

// Artifact is a single downloadable file with its SHA-1.
type Artifact struct {
	Path string `json:"path,omitempty"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// JavaVersion names the runtime major version a version requires.
type JavaVersion struct {
	Component    string `json:"component,omitempty"`
	MajorVersion int    `json:"majorVersion"`
}

// Library is a shared dependency of the game.
type Library struct {
	Name      string           `json:"name"`
	Downloads LibraryDownloads `json:"downloads"`
	Rules     []Rule           `json:"rules,omitempty"`
}

// LibraryDownloads wraps the library artifact. Natives-only libraries have
// no artifact.
type LibraryDownloads struct {
	Artifact *Artifact `json:"artifact,omitempty"`
}

// AssetIndex maps logical asset names to content-addressed objects.
type AssetIndex struct {
	Objects map[string]AssetObject `json:"objects"`
}

// AssetObject is one asset blob.
type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}
