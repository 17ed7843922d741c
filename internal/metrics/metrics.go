package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecordsFetchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "racedata_records_fetched_total",
			Help: "Records read from the vendor session.",
		},
		[]string{"feed", "spec"},
	)

	RecordsParsedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "racedata_records_parsed_total",
			Help: "Records decoded into rows.",
		},
		[]string{"feed", "kind"},
	)

	RecordsImportedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "racedata_records_imported_total",
			Help: "Rows upserted into the destination database.",
		},
		[]string{"table"},
	)

	RecordsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "racedata_records_failed_total",
			Help: "Rows rejected or dropped before or during the write.",
		},
		[]string{"table", "reason"},
	)

	ParseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "racedata_parse_errors_total",
			Help: "Parse failures by reason.",
		},
		[]string{"kind", "reason"},
	)

	DBWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "racedata_db_write_duration_seconds",
			Help:    "DB flush latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		},
		[]string{"table"},
	)

	BatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "racedata_batch_size",
			Help:    "Batch sizes flushed to DB.",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2000},
		},
		[]string{"table"},
	)

	SessionRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "racedata_session_retries_total",
			Help: "Vendor session retries by result code.",
		},
		[]string{"feed", "code"},
	)

	DownloadProgress = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "racedata_download_progress_ratio",
			Help: "Fraction of announced files downloaded for the open session.",
		},
		[]string{"feed"},
	)

	LastRecordTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "racedata_last_record_timestamp_seconds",
			Help: "Unix timestamp of last imported record.",
		},
		[]string{"feed"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RecordsFetchedTotal,
			RecordsParsedTotal,
			RecordsImportedTotal,
			RecordsFailedTotal,
			ParseErrorsTotal,
			DBWriteDuration,
			BatchSize,
			SessionRetriesTotal,
			DownloadProgress,
			LastRecordTimestamp,
		)
	})
}
