package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"filedrop/internal/exifdata"
	"filedrop/internal/imagemeta"
	"filedrop/internal/models"
	"filedrop/internal/service/vision"
	"filedrop/internal/store"
)

// VisionClient is the hosted-AI collaborator contract the pipeline depends
// on. Satisfied by vision.Service; tests swap in fakes.
type VisionClient interface {
	ExtractText(ctx context.Context, photoDataURI string) (string, error)
	TranslateAndIdentify(ctx context.Context, text string) (*vision.TranslationResult, error)
}

// FileInput describes one admitted blob. Open is called once, inside the
// pipeline's goroutine, so slow reads never block admission.
type FileInput struct {
	Name         string
	Size         int64
	MimeType     string
	LastModified time.Time
	Open         func() (io.ReadCloser, error)
}

const lastModifiedLayout = "Jan 2, 2006"

// Pipeline drives the per-file enrichment fan-out and reports every
// settlement into the record store.
type Pipeline struct {
	store  *store.Store
	vision VisionClient
	log    *zap.Logger
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
}

// New builds a pipeline. maxConcurrentAI caps in-flight collaborator calls
// across all records; zero or negative disables the cap.
func New(st *store.Store, vc VisionClient, log *zap.Logger, maxConcurrentAI int64) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{
		store:  st,
		vision: vc,
		log:    log,
	}
	if maxConcurrentAI > 0 {
		p.sem = semaphore.NewWeighted(maxConcurrentAI)
	}
	return p
}

// Admit creates one record per input, prepends the whole batch atomically,
// then kicks off enrichment for the image records. The returned records are
// the admission-time snapshot. Admitted work runs to completion even if ctx
// is cancelled afterwards.
func (p *Pipeline) Admit(ctx context.Context, inputs []FileInput) []*models.FileRecord {
	if len(inputs) == 0 {
		return nil
	}
	batch := make([]*models.FileRecord, 0, len(inputs))
	for _, in := range inputs {
		rec := &models.FileRecord{
			ID:       uuid.New().String(),
			Name:     in.Name,
			Size:     in.Size,
			MimeType: in.MimeType,
		}
		if !in.LastModified.IsZero() {
			rec.LastModified = in.LastModified.Format(lastModifiedLayout)
		}
		if rec.IsImage() {
			rec.MetadataLoading = true
			rec.ExifLoading = true
			rec.OCRLoading = true
		}
		batch = append(batch, rec)
	}
	p.store.Prepend(batch)

	ctx = context.WithoutCancel(ctx)
	for i, rec := range batch {
		if !rec.IsImage() {
			continue
		}
		p.wg.Add(1)
		go func(id string, in FileInput) {
			defer p.wg.Done()
			p.process(ctx, id, in)
		}(rec.ID, inputs[i])
	}
	return batch
}

// Wait blocks until all in-flight enrichment has settled. Used by tests and
// shutdown; normal operation never joins on it.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) process(ctx context.Context, id string, in FileInput) {
	data, err := readBlob(in)
	if err != nil {
		p.failAdmission(id, err)
		return
	}

	dataURI := imagemeta.EncodeDataURI(in.MimeType, data)
	p.store.Update(id, func(r *models.FileRecord) {
		r.PreviewDataURI = dataURI
	})

	p.wg.Add(3)
	go func() {
		defer p.wg.Done()
		p.extractDimensions(id, data)
	}()
	go func() {
		defer p.wg.Done()
		p.extractExif(id, data)
	}()
	go func() {
		defer p.wg.Done()
		p.runOCR(ctx, id, dataURI, in.Name)
	}()
}

// failAdmission marks every capability of one record with the same read
// failure and stops its processing; sibling records are untouched.
func (p *Pipeline) failAdmission(id string, err error) {
	msg := fmt.Sprintf("Failed to read file: %v", err)
	p.store.Update(id, func(r *models.FileRecord) {
		r.MetadataError = msg
		r.ExifError = msg
		r.OCRError = msg
		if r.TranslationError == "" {
			r.TranslationError = msg
		}
		r.MetadataLoading = false
		r.ExifLoading = false
		r.OCRLoading = false
		r.TranslationLoading = false
	})
	p.log.Warn("file read failed",
		zap.String("file_id", id),
		zap.Error(err))
}

func (p *Pipeline) extractDimensions(id string, data []byte) {
	width, height, err := imagemeta.Dimensions(data)
	if err != nil {
		p.store.Update(id, func(r *models.FileRecord) {
			r.MetadataError = "Could not decode image to read its dimensions."
			r.MetadataLoading = false
		})
		p.log.Warn("dimension extraction failed",
			zap.String("file_id", id),
			zap.Error(err))
		return
	}
	p.store.Update(id, func(r *models.FileRecord) {
		r.Dimensions = &models.Dimensions{Width: width, Height: height}
		r.MetadataLoading = false
	})
	p.log.Debug("dimensions extracted",
		zap.String("file_id", id),
		zap.Int("width", width),
		zap.Int("height", height))
}

func (p *Pipeline) extractExif(id string, data []byte) {
	tags, err := exifdata.Extract(data)
	switch {
	case errors.Is(err, exifdata.ErrNoExif):
		p.store.Update(id, func(r *models.FileRecord) {
			r.ExifError = "No EXIF data found in this image."
			r.ExifLoading = false
		})
	case err != nil:
		p.store.Update(id, func(r *models.FileRecord) {
			r.ExifError = "EXIF extraction failed."
			r.ExifLoading = false
		})
		p.log.Warn("exif extraction failed",
			zap.String("file_id", id),
			zap.Error(err))
	default:
		p.store.Update(id, func(r *models.FileRecord) {
			r.ExifData = tags
			r.ExifLoading = false
		})
	}
}

func (p *Pipeline) runOCR(ctx context.Context, id, dataURI, name string) {
	text, err := p.callOCR(ctx, dataURI)
	if err != nil {
		p.store.Update(id, func(r *models.FileRecord) {
			r.OCRError = err.Error()
			r.OCRLoading = false
			r.TranslationLoading = false
		})
		p.log.Warn("ocr failed",
			zap.String("file_id", id),
			zap.String("file_name", name),
			zap.Error(err))
		return
	}

	if strings.TrimSpace(text) == "" {
		// Nothing to translate; settle both capabilities at once.
		empty := ""
		needed := false
		p.store.Update(id, func(r *models.FileRecord) {
			r.OCRText = &text
			r.OCRLoading = false
			r.TranslatedText = &empty
			r.DetectedSourceLanguage = models.LanguageNotApplicable
			r.TranslationNeeded = &needed
			r.TranslationLoading = false
		})
		return
	}

	p.store.Update(id, func(r *models.FileRecord) {
		r.OCRText = &text
		r.OCRLoading = false
		r.TranslationLoading = true
	})
	p.log.Debug("ocr succeeded",
		zap.String("file_id", id),
		zap.Int("text_len", len(text)))

	p.translate(ctx, id, text, name)
}

func (p *Pipeline) translate(ctx context.Context, id, text, name string) {
	res, err := p.callTranslate(ctx, text)
	if err != nil {
		p.store.Update(id, func(r *models.FileRecord) {
			r.TranslationError = err.Error()
			r.TranslationLoading = false
		})
		p.log.Warn("translation failed",
			zap.String("file_id", id),
			zap.String("file_name", name),
			zap.Error(err))
		return
	}
	p.store.Update(id, func(r *models.FileRecord) {
		translated := res.TranslatedText
		needed := res.IsTranslationNeeded
		r.TranslatedText = &translated
		r.DetectedSourceLanguage = res.SourceLanguage
		r.TranslationNeeded = &needed
		r.TranslationLoading = false
	})
}

func (p *Pipeline) callOCR(ctx context.Context, dataURI string) (string, error) {
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return "", err
		}
		defer p.sem.Release(1)
	}
	return p.vision.ExtractText(ctx, dataURI)
}

func (p *Pipeline) callTranslate(ctx context.Context, text string) (*vision.TranslationResult, error) {
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer p.sem.Release(1)
	}
	return p.vision.TranslateAndIdentify(ctx, text)
}

func readBlob(in FileInput) ([]byte, error) {
	if in.Open == nil {
		return nil, errors.New("no file content")
	}
	rc, err := in.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return data, nil
}
