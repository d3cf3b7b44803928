package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"

	"filedrop/internal/models"
	"filedrop/internal/service/vision"
	"filedrop/internal/store"
)

type fakeVision struct {
	mu             sync.Mutex
	ocrText        string
	ocrErr         error
	translation    *vision.TranslationResult
	translateErr   error
	ocrCalls       int
	translateCalls int
	ocrBlock       chan struct{}
}

func (f *fakeVision) ExtractText(ctx context.Context, photoDataURI string) (string, error) {
	if f.ocrBlock != nil {
		<-f.ocrBlock
	}
	f.mu.Lock()
	f.ocrCalls++
	f.mu.Unlock()
	return f.ocrText, f.ocrErr
}

func (f *fakeVision) TranslateAndIdentify(ctx context.Context, text string) (*vision.TranslationResult, error) {
	f.mu.Lock()
	f.translateCalls++
	f.mu.Unlock()
	return f.translation, f.translateErr
}

func (f *fakeVision) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ocrCalls, f.translateCalls
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func bytesInput(name, mime string, data []byte) FileInput {
	return FileInput{
		Name:     name,
		Size:     int64(len(data)),
		MimeType: mime,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func assertSettled(t *testing.T, rec *models.FileRecord) {
	t.Helper()
	if rec.MetadataLoading || rec.ExifLoading || rec.OCRLoading || rec.TranslationLoading {
		t.Fatalf("record %s still has a loading flag set: %+v", rec.ID, rec)
	}
}

func TestImageEnrichmentEnglishText(t *testing.T) {
	st := store.New()
	fake := &fakeVision{
		ocrText: "HELLO",
		translation: &vision.TranslationResult{
			TranslatedText:      "HELLO",
			SourceLanguage:      "English",
			IsTranslationNeeded: false,
		},
	}
	p := New(st, fake, nil, 2)

	batch := p.Admit(context.Background(), []FileInput{
		bytesInput("photo.png", "image/png", pngBytes(t, 2, 3)),
	})
	if len(batch) != 1 {
		t.Fatalf("expected 1 admitted record, got %d", len(batch))
	}
	if !batch[0].MetadataLoading || !batch[0].ExifLoading || !batch[0].OCRLoading {
		t.Fatalf("image record not admitted with loading flags: %+v", batch[0])
	}
	if batch[0].TranslationLoading {
		t.Fatalf("translation must stay gated behind ocr at admission")
	}
	p.Wait()

	rec := st.Get(batch[0].ID)
	assertSettled(t, rec)
	if rec.Dimensions == nil || rec.Dimensions.Width != 2 || rec.Dimensions.Height != 3 {
		t.Fatalf("wrong dimensions: %+v", rec.Dimensions)
	}
	if !strings.HasPrefix(rec.PreviewDataURI, "data:image/png;base64,") {
		t.Fatalf("preview data uri missing or malformed: %.40s", rec.PreviewDataURI)
	}
	if rec.OCRText == nil || *rec.OCRText != "HELLO" {
		t.Fatalf("ocr text mismatch: %v", rec.OCRText)
	}
	if rec.TranslatedText == nil || *rec.TranslatedText != "HELLO" {
		t.Fatalf("translated text mismatch: %v", rec.TranslatedText)
	}
	if rec.DetectedSourceLanguage != "English" {
		t.Fatalf("source language mismatch: %q", rec.DetectedSourceLanguage)
	}
	if rec.TranslationNeeded == nil || *rec.TranslationNeeded {
		t.Fatalf("translation should not be needed for English text")
	}
	// A plain PNG carries no EXIF; that is a benign outcome, not a fault.
	if rec.ExifError == "" || rec.ExifData != nil {
		t.Fatalf("expected benign no-exif outcome: %+v", rec)
	}
}

func TestForeignTextIsTranslated(t *testing.T) {
	st := store.New()
	fake := &fakeVision{
		ocrText: "Bonjour",
		translation: &vision.TranslationResult{
			TranslatedText:      "Hello",
			SourceLanguage:      "French",
			IsTranslationNeeded: true,
		},
	}
	p := New(st, fake, nil, 0)

	batch := p.Admit(context.Background(), []FileInput{
		bytesInput("sign.png", "image/png", pngBytes(t, 1, 1)),
	})
	p.Wait()

	rec := st.Get(batch[0].ID)
	assertSettled(t, rec)
	if rec.OCRText == nil || *rec.OCRText != "Bonjour" {
		t.Fatalf("ocr text mismatch: %v", rec.OCRText)
	}
	if rec.TranslatedText == nil || *rec.TranslatedText != "Hello" {
		t.Fatalf("translated text mismatch: %v", rec.TranslatedText)
	}
	if rec.DetectedSourceLanguage != "French" {
		t.Fatalf("source language mismatch: %q", rec.DetectedSourceLanguage)
	}
	if rec.TranslationNeeded == nil || !*rec.TranslationNeeded {
		t.Fatalf("expected translation_needed=true")
	}
}

func TestNonImageIsNeverProcessed(t *testing.T) {
	st := store.New()
	fake := &fakeVision{ocrText: "should never be used"}
	p := New(st, fake, nil, 0)

	batch := p.Admit(context.Background(), []FileInput{
		bytesInput("notes.txt", "text/plain; charset=utf-8", []byte("hello")),
	})
	p.Wait()

	rec := st.Get(batch[0].ID)
	assertSettled(t, rec)
	if rec.PreviewDataURI != "" || rec.Dimensions != nil || rec.ExifData != nil ||
		rec.OCRText != nil || rec.TranslatedText != nil {
		t.Fatalf("non-image record was enriched: %+v", rec)
	}
	if rec.MetadataError != "" || rec.ExifError != "" || rec.OCRError != "" || rec.TranslationError != "" {
		t.Fatalf("non-image record collected errors: %+v", rec)
	}
	if ocr, tr := fake.counts(); ocr != 0 || tr != 0 {
		t.Fatalf("collaborators called for non-image: ocr=%d translate=%d", ocr, tr)
	}
}

func TestBatchesPrependMostRecentFirst(t *testing.T) {
	st := store.New()
	p := New(st, &fakeVision{}, nil, 0)

	p.Admit(context.Background(), []FileInput{
		bytesInput("a.txt", "text/plain", []byte("a")),
		bytesInput("b.txt", "text/plain", []byte("b")),
	})
	p.Admit(context.Background(), []FileInput{
		bytesInput("c.txt", "text/plain", []byte("c")),
		bytesInput("d.txt", "text/plain", []byte("d")),
	})
	p.Wait()

	got := st.List()
	want := []string{"c.txt", "d.txt", "a.txt", "b.txt"}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, got[i].Name)
		}
	}
}

func TestReadFailureSettlesAllCapabilities(t *testing.T) {
	st := store.New()
	fake := &fakeVision{}
	p := New(st, fake, nil, 0)

	batch := p.Admit(context.Background(), []FileInput{
		{
			Name:     "broken.png",
			Size:     42,
			MimeType: "image/png",
			Open: func() (io.ReadCloser, error) {
				return nil, errors.New("disk exploded")
			},
		},
	})
	p.Wait()

	rec := st.Get(batch[0].ID)
	assertSettled(t, rec)
	if rec.MetadataError == "" || rec.ExifError == "" || rec.OCRError == "" || rec.TranslationError == "" {
		t.Fatalf("expected every capability error to be set: %+v", rec)
	}
	if rec.MetadataError != rec.OCRError || rec.OCRError != rec.ExifError {
		t.Fatalf("read failure should use one uniform message: %+v", rec)
	}
	if ocr, _ := fake.counts(); ocr != 0 {
		t.Fatalf("ocr ran despite read failure")
	}
}

func TestOCRFailureBlocksTranslation(t *testing.T) {
	st := store.New()
	fake := &fakeVision{ocrErr: errors.New("model unavailable")}
	p := New(st, fake, nil, 0)

	batch := p.Admit(context.Background(), []FileInput{
		bytesInput("photo.png", "image/png", pngBytes(t, 1, 1)),
	})
	p.Wait()

	rec := st.Get(batch[0].ID)
	assertSettled(t, rec)
	if rec.OCRError == "" || rec.OCRText != nil {
		t.Fatalf("expected ocr error without text: %+v", rec)
	}
	if _, tr := fake.counts(); tr != 0 {
		t.Fatalf("translation ran after ocr failure")
	}
	// Metadata settles on its own regardless of the ocr outcome.
	if rec.Dimensions == nil {
		t.Fatalf("metadata should have settled independently")
	}
}

func TestEmptyOCRTextShortCircuitsTranslation(t *testing.T) {
	st := store.New()
	fake := &fakeVision{ocrText: "   "}
	p := New(st, fake, nil, 0)

	batch := p.Admit(context.Background(), []FileInput{
		bytesInput("blank.png", "image/png", pngBytes(t, 1, 1)),
	})
	p.Wait()

	rec := st.Get(batch[0].ID)
	assertSettled(t, rec)
	if rec.OCRText == nil {
		t.Fatalf("empty ocr result should still be recorded")
	}
	if rec.TranslatedText == nil || *rec.TranslatedText != "" {
		t.Fatalf("expected empty translated text: %v", rec.TranslatedText)
	}
	if rec.DetectedSourceLanguage != models.LanguageNotApplicable {
		t.Fatalf("expected %q, got %q", models.LanguageNotApplicable, rec.DetectedSourceLanguage)
	}
	if rec.TranslationNeeded == nil || *rec.TranslationNeeded {
		t.Fatalf("expected translation_needed=false")
	}
	if _, tr := fake.counts(); tr != 0 {
		t.Fatalf("translator called for empty text")
	}
}

func TestTranslationFailureKeepsOCRText(t *testing.T) {
	st := store.New()
	fake := &fakeVision{
		ocrText:      "Bonjour",
		translateErr: errors.New("quota exceeded"),
	}
	p := New(st, fake, nil, 0)

	batch := p.Admit(context.Background(), []FileInput{
		bytesInput("sign.png", "image/png", pngBytes(t, 1, 1)),
	})
	p.Wait()

	rec := st.Get(batch[0].ID)
	assertSettled(t, rec)
	if rec.OCRText == nil || *rec.OCRText != "Bonjour" {
		t.Fatalf("ocr result lost after translation failure: %v", rec.OCRText)
	}
	if rec.TranslationError == "" || rec.TranslatedText != nil {
		t.Fatalf("expected translation error without result: %+v", rec)
	}
}

func TestCorruptImageSettlesWithoutPanic(t *testing.T) {
	st := store.New()
	fake := &fakeVision{ocrText: ""}
	p := New(st, fake, nil, 0)

	batch := p.Admit(context.Background(), []FileInput{
		bytesInput("corrupt.png", "image/png", []byte("definitely not an image")),
	})
	p.Wait()

	rec := st.Get(batch[0].ID)
	assertSettled(t, rec)
	if rec.MetadataError == "" || rec.Dimensions != nil {
		t.Fatalf("expected metadata decode failure: %+v", rec)
	}
	if rec.ExifError == "" {
		t.Fatalf("expected exif outcome to settle: %+v", rec)
	}
}

func TestLateSettlementAfterClearIsInert(t *testing.T) {
	st := store.New()
	fake := &fakeVision{ocrText: "HELLO", ocrBlock: make(chan struct{})}
	p := New(st, fake, nil, 0)

	p.Admit(context.Background(), []FileInput{
		bytesInput("photo.png", "image/png", pngBytes(t, 1, 1)),
	})

	// Clear while OCR is still in flight; its settlement must vanish.
	st.Clear()
	close(fake.ocrBlock)
	p.Wait()

	if st.Len() != 0 {
		t.Fatalf("late update resurrected a cleared record")
	}
}
