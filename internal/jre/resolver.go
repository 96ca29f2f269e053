package jre

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strconv"
)

var (
	// ErrNoPackage indicates the metadata API returned no matching runtime
	ErrNoPackage = errors.New("no_runtime_package")

	// ErrUnsupportedPlatform indicates the running OS or CPU has no mapping
	ErrUnsupportedPlatform = errors.New("unsupported_platform")
)

// Getter is satisfied by httpclient.Client.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Package is one entry of the metadata API response.
type Package struct {
	PackageUUID  string `json:"package_uuid"`
	Name         string `json:"name"`
	JavaVersion  []int  `json:"java_version"`
	DownloadURL  string `json:"download_url"`
	Latest       bool   `json:"latest"`
	Availability string `json:"availability_type"`
}

// Resolver looks up runtime bundles in the Azul Zulu metadata API.
type Resolver struct {
	Client Getter
	APIURL string
	OS     string // Azul os value; defaults to the running OS
	Arch   string // Azul arch value; defaults to the running CPU
}

// NewResolver returns a Resolver for the running platform.
func NewResolver(client Getter, apiURL string) *Resolver {
	return &Resolver{
		Client: client,
		APIURL: apiURL,
		OS:     azulOS(runtime.GOOS),
		Arch:   azulArch(runtime.GOARCH),
	}
}

// ArchiveURL returns the download URL of a zip bundle for the given Java
// major version.
func (r *Resolver) ArchiveURL(ctx context.Context, major int) (string, error) {
	if major <= 0 {
		return "", fmt.Errorf("invalid java major version %d", major)
	}
	if r.OS == "" || r.Arch == "" {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, runtime.GOOS, runtime.GOARCH)
	}

	u, err := url.Parse(r.APIURL)
	if err != nil {
		return "", fmt.Errorf("parse runtime api url: %w", err)
	}
	q := u.Query()
	q.Set("java_version", strconv.Itoa(major))
	q.Set("os", r.OS)
	q.Set("arch", r.Arch)
	q.Set("archive_type", "zip")
	q.Set("java_package_type", "jdk")
	q.Set("javafx_bundled", "false")
	q.Set("release_status", "ga")
	q.Set("latest", "true")
	u.RawQuery = q.Encode()

	body, err := r.Client.Get(ctx, u.String())
	if err != nil {
		return "", fmt.Errorf("query runtime metadata: %w", err)
	}

	var pkgs []Package
	if err := json.Unmarshal(body, &pkgs); err != nil {
		return "", fmt.Errorf("decode runtime metadata: %w", err)
	}
	for _, p := range pkgs {
		if p.DownloadURL != "" {
			return p.DownloadURL, nil
		}
	}
	return "", fmt.Errorf("%w: java %d for %s/%s", ErrNoPackage, major, r.OS, r.Arch)
}

func azulOS(goos string) string {
	switch goos {
	case "windows", "linux":
		return goos
	case "darwin":
		return "macos"
	default:
		return ""
	}
}

func azulArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x64"
	case "arm64":
		return "aarch64"
	case "386":
		return "x86"
	default:
		return ""
	}
}
