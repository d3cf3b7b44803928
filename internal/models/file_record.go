package models

import "strings"

// Sentinel values for the detected source language.
const (
	LanguageNotApplicable = "Not applicable"
	LanguageUnknown       = "Unknown"
)

// Dimensions holds the decoded pixel size of an image.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FileRecord is the per-file state the pipeline mutates and the API exposes.
// ID and the attributes captured at admission never change afterwards; only
// the derived fields and loading flags do. Each enrichment capability
// (metadata, exif, ocr, translation) owns its own result, error and loading
// fields and must touch nothing else.
type FileRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mime_type"`
	LastModified string `json:"last_modified,omitempty"`

	PreviewDataURI string            `json:"preview_data_uri,omitempty"`
	Dimensions     *Dimensions       `json:"dimensions,omitempty"`
	ExifData       map[string]string `json:"exif_data,omitempty"`

	// OCRText and TranslatedText distinguish "absent" from "empty string",
	// so they stay pointers.
	OCRText                *string `json:"ocr_text,omitempty"`
	TranslatedText         *string `json:"translated_text,omitempty"`
	DetectedSourceLanguage string  `json:"detected_source_language,omitempty"`
	TranslationNeeded      *bool   `json:"translation_needed,omitempty"`

	MetadataError    string `json:"metadata_error,omitempty"`
	ExifError        string `json:"exif_error,omitempty"`
	OCRError         string `json:"ocr_error,omitempty"`
	TranslationError string `json:"translation_error,omitempty"`

	MetadataLoading    bool `json:"metadata_loading"`
	ExifLoading        bool `json:"exif_loading"`
	OCRLoading         bool `json:"ocr_loading"`
	TranslationLoading bool `json:"translation_loading"`
}

// IsImage reports whether the record is eligible for image enrichment.
func (r *FileRecord) IsImage() bool {
	return strings.HasPrefix(r.MimeType, "image/")
}

// Clone returns a deep copy so callers never share mutable state with the
// store's copy.
func (r *FileRecord) Clone() *FileRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Dimensions != nil {
		d := *r.Dimensions
		c.Dimensions = &d
	}
	if r.ExifData != nil {
		tags := make(map[string]string, len(r.ExifData))
		for k, v := range r.ExifData {
			tags[k] = v
		}
		c.ExifData = tags
	}
	if r.OCRText != nil {
		s := *r.OCRText
		c.OCRText = &s
	}
	if r.TranslatedText != nil {
		s := *r.TranslatedText
		c.TranslatedText = &s
	}
	if r.TranslationNeeded != nil {
		b := *r.TranslationNeeded
		c.TranslationNeeded = &b
	}
	return &c
}
