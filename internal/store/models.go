package store

// Message is the persisted and transmitted chat unit. The same struct is
// used as the database row and the wire frame: `db` tags map the SQLite
// columns, `json` tags map the WebSocket frame fields.
//
// ID is assigned by the store on insert and omitted from frames while zero,
// so a frame that never reached the store carries no id. Attachment is an
// opaque path or URL reference; nil when the message has none.
type Message struct {
	ID         int64   `db:"id"         json:"id,omitempty"`
	Sender     string  `db:"sender"     json:"sender"`
	Text       string  `db:"text"       json:"text"`
	Timestamp  string  `db:"timestamp"  json:"timestamp,omitempty"`
	Attachment *string `db:"attachment" json:"attachment,omitempty"`
}
