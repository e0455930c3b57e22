package mining

// renameMap translates paths across the renames met during one traversal.
type renameMap map[string]string

// resolve returns the mapped path, or path itself.
func (r renameMap) resolve(path string) string {
	if mapped, ok := r[path]; ok {
		return mapped
	}

	return path
}

// trackForward records a rename met while walking towards older commits:
// the old path now stands for whatever the new path stood for.
func (r renameMap) trackForward(oldPath, newPath string) {
	r[oldPath] = r.resolve(newPath)
}

// trackBackward records a rename met while replaying older versions: the new
// path was called oldPath before this commit.
func (r renameMap) trackBackward(oldPath, newPath string) {
	r[newPath] = oldPath
}

func (r renameMap) forget(path string) {
	delete(r, path)
}
