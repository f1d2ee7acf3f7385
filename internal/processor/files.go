package processor

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Extensions offered by the file picker
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// IsVideoFile reports whether path has a supported video extension
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// OutputPath returns <outputDir>/<input base name><suffix>.<format>. Inputs
// sharing a base name map to the same output path.
func OutputPath(inputPath, outputDir, suffix, format string) string {
	base := filepath.Base(inputPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, base+suffix+"."+format)
}

// ExpandInputs replaces every directory in paths with the video files it
// directly contains, sorted by name. Plain files are kept in place whatever
// their extension.
func ExpandInputs(paths []string) ([]string, error) {
	expanded := make([]string, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			expanded = append(expanded, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read directory %s", path)
		}

		var videos []string
		for _, entry := range entries {
			if entry.IsDir() || !IsVideoFile(entry.Name()) {
				continue
			}
			videos = append(videos, filepath.Join(path, entry.Name()))
		}
		sort.Strings(videos)
		expanded = append(expanded, videos...)
	}
	return expanded, nil
}
