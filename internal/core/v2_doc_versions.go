package core

import "maps"

// V2DocVersion is the external version of one document, keyed by doc id in
// V2DocVersions.
type V2DocVersion struct {
	Pathname string `json:"pathname"`
	V        int    `json:"v"`
}

// V2DocVersions maps document ids to their latest known external version.
type V2DocVersions map[string]V2DocVersion

// Clone returns a copy, or nil for a nil map.
func (v V2DocVersions) Clone() V2DocVersions {
	return maps.Clone(v)
}

// moveFile renames the entries for pathname, or drops them when newPathname
// is empty.
func (v V2DocVersions) moveFile(pathname, newPathname string) {
	for id, entry := range v {
		if entry.Pathname != pathname {
			continue
		}
		if newPathname == "" {
			delete(v, id)
			continue
		}
		entry.Pathname = newPathname
		v[id] = entry
	}
}
