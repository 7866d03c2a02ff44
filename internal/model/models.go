// Package model defines data structure.
package model

import "time"

// Message holds a single durable chat record. ID and CreatedAt are
// assigned by the store on creation and never change afterwards.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Image     *string   `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
}

// BlobInfo describes a stored blob. Filenames are client-supplied and
// not unique; the ID is the only stable handle.
type BlobInfo struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Length      int64     `json:"length"`
	UploadedAt  time.Time `json:"uploadedAt"`
}
