package ffprobe

import (
	"os"

	"github.com/dhowden/tag"

	"github.com/five82/videocompress/internal/logging"
	"github.com/five82/videocompress/internal/media"
)

// fillTagsFromFile reads title and author atoms directly from the file when
// ffprobe did not surface them. Unsupported containers are ignored.
func fillTagsFromFile(asset *media.Asset) {
	f, err := os.Open(asset.Path)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	m, err := tag.ReadFrom(f)
	if err != nil {
		logging.Debug("No embedded tags", "path", asset.Path, "error", err)
		return
	}

	if asset.Title == "" {
		asset.Title = m.Title()
	}
	if asset.Author == "" {
		if artist := m.Artist(); artist != "" {
			asset.Author = artist
		} else {
			asset.Author = m.AlbumArtist()
		}
	}
}
