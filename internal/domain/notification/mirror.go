package notification

// Mirror is a snapshot of the system of record's tables.
// Companies, templates, config and send log are replaced wholesale; invoices are upserted.
type Mirror struct {
	Companies []Company
	Invoices  []Invoice
	Templates []Template
	Config    []ConfigEntry
	SendLog   []SendRecord
}

// MirrorCounts reports row counts per mirrored table
type MirrorCounts struct {
	Companies int `json:"companies"`
	Invoices  int `json:"invoices"`
	Templates int `json:"templates"`
	Config    int `json:"config"`
	SendLog   int `json:"sendLog"`
}

// UpsertFailure is one invoice row that could not be written
type UpsertFailure struct {
	ProviderInvoiceID string
	Err               error
}

// UpsertResult summarizes a bulk invoice upsert.
// Row failures do not abort the batch.
type UpsertResult struct {
	Upserted int
	Failed   []UpsertFailure
}
