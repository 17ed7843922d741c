package ingest

// Snapshot is a consistent copy of the run-scoped counters. Fetched,
// parsed and imported count record buffers; the writer's row-level
// numbers feed failed and batches.
type Snapshot struct {
	Phase     string `json:"phase"`
	Fetched   int64  `json:"fetched"`
	Parsed    int64  `json:"parsed"`
	Imported  int64  `json:"imported"`
	Failed    int64  `json:"failed"`
	Batches   int64  `json:"batches"`
	Retries   int64  `json:"retries"`
	LastFile  string `json:"last_file"`
	LastChunk string `json:"last_chunk"`
}
