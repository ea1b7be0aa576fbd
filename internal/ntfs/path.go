package ntfs

// rootRecord is the well-known MFT record number of the volume root
// directory.
const rootRecord = 5

// dirCache maps an MFT record number to the already-materialized path of
// that directory, relative to the extraction root. It is seeded with the
// root directory mapping to the empty path and grows as directories are
// visited, so that sibling files under an already-seen directory never
// re-walk the parent chain.
type dirCache struct {
	paths map[uint64]string
}

func newDirCache() *dirCache {
	return &dirCache{paths: map[uint64]string{rootRecord: ""}}
}

func (c *dirCache) get(ref uint64) (string, bool) {
	p, ok := c.paths[ref]
	return p, ok
}

func (c *dirCache) put(ref uint64, path string) {
	c.paths[ref] = path
}

// buildPath resolves the relative path of the directory identified by ref,
// walking parent references and consulting/populating the cache along the
// way. It gives up (returning ok=false) on missing parents or records named
// with a leading '$' (NTFS metadata files), matching the scope of entries
// the extractor is willing to place in the output tree.
func (e *Extractor) buildPath(ref uint64) (string, bool) {
	if p, ok := e.cache.get(ref); ok {
		return p, true
	}

	info := e.readFileInfo(ref)
	if !info.Valid || len(info.Name) == 0 || info.Name[0] == '$' {
		return "", false
	}

	parentPath, ok := e.buildPath(info.ParentRef)
	if !ok {
		return "", false
	}

	path := info.Name
	if parentPath != "" {
		path = parentPath + "/" + info.Name
	}

	if info.IsDirectory {
		e.cache.put(ref, path)
	}
	return path, true
}

// fullPath resolves the full relative path for a record given its parent
// reference and own name, falling back to placing it at the extraction
// root if the parent chain cannot be resolved.
func (e *Extractor) fullPath(parentRef uint64, name string) string {
	parentPath, ok := e.buildPath(parentRef)
	if !ok || parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}
