package helpers

import (
	"path/filepath"

	"dagestimator/internal/shared/util"
)

// ResolveOutputPath places a named artifact inside dir unless name is
// already absolute. An empty name disables the artifact.
func ResolveOutputPath(name, dir string) string {
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(dir, name)
}

// RegionFile names the graph file of one region, e.g. "main_loop.dag.dot".
func RegionFile(dir, regionPath, graph, ext string) string {
	return filepath.Join(dir, util.SanitizeFileName(regionPath)+"."+graph+"."+ext)
}

func WriteArtifact(path string, content []byte) error {
	return util.WriteFileWithDirs(path, content, 0o644)
}
