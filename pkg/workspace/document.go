package workspace

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/hed-standard/hed-lsp/pkg/region"
	"github.com/hed-standard/hed-lsp/pkg/scan"
)

// snapshot is an immutable view of a document at one version. Regions and
// definitions are extracted once, when the snapshot is taken.
type snapshot struct {
	uri     string
	path    string
	version int
	text    string
	lines   *region.LineIndex
	regions []region.Region
	defs    []scan.Definition
}

func newSnapshot(uri string, version int, text string) *snapshot {
	path := uriToPath(uri)
	lines := region.NewLineIndex(text)
	regions := region.Extract(text, region.FormatFromPath(path), lines)
	return &snapshot{
		uri:     uri,
		path:    path,
		version: version,
		text:    text,
		lines:   lines,
		regions: regions,
		defs:    scan.ExtractDefinitions(regions),
	}
}

func (s *snapshot) regionAt(pos region.Position) (region.Region, int, bool) {
	r, ok := region.RegionAt(s.regions, pos)
	if !ok {
		return region.Region{}, 0, false
	}
	return r, r.OffsetOf(s.lines, pos), true
}

// uriToPath turns a file:// URI into a local path. Anything else is taken
// as a path already.
func uriToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return filepath.Clean(uri)
	}
	u, err := url.Parse(uri)
	if err != nil || u.Path == "" {
		return filepath.Clean(strings.TrimPrefix(uri, "file://"))
	}
	return filepath.FromSlash(u.Path)
}
