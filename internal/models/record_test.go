package models

import "testing"

func TestDocumentType_IsKnown(t *testing.T) {
	for _, dt := range DocumentTypes {
		if !dt.IsKnown() {
			t.Errorf("%s should be known", dt)
		}
	}

	if DocumentType("Genelge").IsKnown() {
		t.Error("unexpected known type")
	}
}

func TestRecord_Enriched(t *testing.T) {
	rec := Record{Title: "Türk Ceza Kanunu"}
	if rec.Enriched() {
		t.Error("record without URL must not count as enriched")
	}

	rec.URL = "https://www.mevzuat.gov.tr/mevzuat?MevzuatNo=5237"
	if !rec.Enriched() {
		t.Error("record with URL must count as enriched")
	}
}
