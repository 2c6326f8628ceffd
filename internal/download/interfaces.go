package download

import (
	"context"

	"github.com/vkget/vk-archive-downloader/internal/model"
)

// Downloader defines the interface for the download engine.
type Downloader interface {
	Fetch(ctx context.Context, target model.ValidatedTarget) model.DownloadOutcome
	FetchAll(ctx context.Context, targets []model.ValidatedTarget) []model.DownloadOutcome

	// SetMaxParallelDownloads sets the maximum number of parallel downloads
	SetMaxParallelDownloads(max int)

	// SetForce toggles re-downloading of files that already exist
	SetForce(force bool)
}
