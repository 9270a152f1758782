package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UploadsTotal counts received files.
	UploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filedrop_uploads_total",
		Help: "Number of files received.",
	})

	// UploadBytesTotal counts received payload bytes.
	UploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filedrop_upload_bytes_total",
		Help: "Total bytes received across uploads.",
	})

	// DownloadsTotal counts served downloads by mode (single or archive).
	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filedrop_downloads_total",
		Help: "Number of downloads served.",
	}, []string{"mode"})

	// ArchiveEntriesTotal counts zip entries by result (added or missing).
	ArchiveEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filedrop_archive_entries_total",
		Help: "Archive entries attempted during bulk downloads.",
	}, []string{"result"})

	// SweepDeletedBucketsTotal counts buckets removed by retention sweeps.
	SweepDeletedBucketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filedrop_sweep_deleted_buckets_total",
		Help: "Date buckets deleted by the retention sweeper.",
	})
)

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}
