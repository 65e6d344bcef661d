// internal/models/document.go
package models

import "time"

// Slot identifies a document slot on a draft or application.
type Slot string

const (
	SlotPassportPhoto Slot = "passport_photo"
	SlotIDDocument    Slot = "id_document"
	SlotAcademic      Slot = "academic"
)

// AcademicMaxCount is the hard cap on the academic document collection.
const AcademicMaxCount = 5

// IsSingle reports whether the slot holds at most one document.
func (s Slot) IsSingle() bool {
	return s == SlotPassportPhoto || s == SlotIDDocument
}

// Valid reports whether the slot name is one we know.
func (s Slot) Valid() bool {
	switch s {
	case SlotPassportPhoto, SlotIDDocument, SlotAcademic:
		return true
	}
	return false
}

// DocumentMeta describes one uploaded file. The bytes live in blob storage;
// only the URL is kept on the record.
type DocumentMeta struct {
	FileName      string    `json:"fileName"`
	Size          int64     `json:"size"`
	URL           string    `json:"url"`
	UploadedAt    time.Time `json:"uploadedAt"`
	OwnerRecordID string    `json:"ownerRecordId,omitempty"`
}

// DocumentFile carries the bytes of a file on its way into blob storage.
type DocumentFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// DocumentSet groups the three slots as they are stored on a record.
type DocumentSet struct {
	PassportPhoto *DocumentMeta  `json:"passportPhoto,omitempty"`
	IDDocument    *DocumentMeta  `json:"idDocument,omitempty"`
	AcademicDocs  []DocumentMeta `json:"academicDocs,omitempty"`
}
