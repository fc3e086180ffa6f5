// Package models defines data structures shared by the crawler, ingest loop and uploader.
package models

import "time"

// DocumentType is the portal's legislation category selector (MevzuatTur).
type DocumentType string

// Known document type selectors accepted by the list endpoint.
const (
	TypeKanun                        DocumentType = "Kanun"
	TypeCumhurbaskaniKararnameleri   DocumentType = "CumhurbaskaniKararnameleri"
	TypeCBVeBakanlarKuruluYonetmelik DocumentType = "CumhurbaskanligiVeBakanlarKuruluYonetmelik"
	TypeCumhurbaskaniKararlari       DocumentType = "CumhurbaskaniKararlari"
	TypeCumhurbaskanligiGenelgeleri  DocumentType = "CumhurbaskanligiGenelgeleri"
	TypeKHK                          DocumentType = "KHK"
	TypeTuzuk                        DocumentType = "Tuzuk"
	TypeKurumVeKurulusYonetmeligi    DocumentType = "KurumVeKurulusYonetmeligi"
	TypeTeblig                       DocumentType = "Teblig"
)

// DocumentTypes lists every selector in the order the portal menu shows them.
var DocumentTypes = []DocumentType{
	TypeKanun,
	TypeCumhurbaskaniKararnameleri,
	TypeCBVeBakanlarKuruluYonetmelik,
	TypeCumhurbaskaniKararlari,
	TypeCumhurbaskanligiGenelgeleri,
	TypeKHK,
	TypeTuzuk,
	TypeKurumVeKurulusYonetmeligi,
	TypeTeblig,
}

// IsKnown reports whether t is one of the selectors in DocumentTypes.
// Callers are free to send unknown selectors; the portal decides.
func (t DocumentType) IsKnown() bool {
	for _, known := range DocumentTypes {
		if t == known {
			return true
		}
	}

	return false
}

// String returns the raw selector.
func (t DocumentType) String() string {
	return string(t)
}

// Record is one legislative document.
// Text and URL stay empty until the text fetcher enriches the record.
type Record struct {
	Title        string `json:"title"`
	URLParams    string `json:"url_params"`
	DocumentNo   string `json:"mevzuat_no"`
	GazetteDate  string `json:"resmi_gazete_tarihi"`
	GazetteNo    string `json:"resmi_gazete_sayisi"`
	DocumentType string `json:"mevzuat_turu"`
	Text         string `json:"text"`
	URL          string `json:"url"`
}

// Enriched reports whether the record already carries fetched text.
func (r Record) Enriched() bool {
	return r.URL != ""
}

// Batch is an ordered run of records flushed and uploaded together.
type Batch struct {
	CreatedAt    time.Time
	DocumentType DocumentType
	Records      []Record
	Sequence     int
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int {
	return len(b.Records)
}
