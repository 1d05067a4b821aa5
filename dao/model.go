package dao

// MaxIdLength is the longest id every backend can key on; the SQL schemas use VARCHAR(255).
const MaxIdLength = 255

// Record is the stored tuple behind a short id.
type Record struct {
	Id     string `json:"-" bson:"_id"`
	Url    string `json:"url" bson:"url"`
	Visits int64  `json:"visits" bson:"visits"`
}

// NewRecord returns a fresh record with no visits.
func NewRecord(id, url string) Record {
	return Record{Id: id, Url: url, Visits: 0}
}
