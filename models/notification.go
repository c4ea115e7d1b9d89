package models

import "loan-sync/store"

type Notification struct {
	ID      string `json:"id"`
	UserID  string `json:"userId"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Time    string `json:"time"`
	Read    bool   `json:"read"`
	Type    string `json:"type"`
}

// NotificationRow has every column set on write, so an upsert replaces the
// stored row wholesale.
type NotificationRow struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Time    string `json:"time"`
	Read    bool   `json:"read"`
	Type    string `json:"type"`
}

func NotificationFromRow(r NotificationRow) Notification {
	return Notification(r)
}

func NotificationToRow(n Notification) NotificationRow {
	return NotificationRow(n)
}

func DecodeNotificationRow(rec store.Record) (NotificationRow, error) {
	var row NotificationRow
	err := decodeRecord(rec, &row)
	return row, err
}

func (r NotificationRow) Record() store.Record {
	return encodeRecord(r)
}
