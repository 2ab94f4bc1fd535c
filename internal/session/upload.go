package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// FileFromPath describes a local file the way a browser file picker would,
// with the MIME type detected from its content.
func FileFromPath(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%q is a directory", path)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detecting type of %q: %w", path, err)
	}

	return &File{
		Path: path,
		Name: filepath.Base(path),
		MIME: mtype.String(),
		Size: info.Size(),
	}, nil
}

// ValidateFile keeps f as the pending upload when it is an acceptable CV.
// Nothing is accepted while the uploader is hidden.
func (c *Controller) ValidateFile(f *File) bool {
	if f == nil || !c.uploader {
		return false
	}

	if f.MIME != pdfMIME {
		c.log().Debug("rejecting file", zap.String("name", f.Name), zap.String("mime", f.MIME))
		c.system(TextOnlyPDF)
		return false
	}

	if f.Size > c.cfg.MaxFileSize {
		c.log().Debug("rejecting file", zap.String("name", f.Name), zap.Int64("size", f.Size))
		c.system(tooLargeText(c.cfg.MaxFileSize))
		return false
	}

	pending := *f
	c.pending = &pending
	return true
}

// SubmitUpload reads f off the loop and sends it as a single cv_upload frame.
// The outcome arrives later as a cv_processed or error frame.
func (c *Controller) SubmitUpload(f *File) {
	if f == nil {
		return
	}

	if c.conn == nil || c.connState != Open {
		c.system(TextUploadNoConn)
		return
	}

	c.system(TextProcessingCV)

	file := *f
	gen, epoch := c.gen, c.epoch
	read := c.readFile
	c.sched.Go(func() func() {
		content, err := read(file.Path)
		return func() {
			c.onFileRead(gen, epoch, file, content, err)
		}
	})
}

// UploadPending submits the pending file, if any.
func (c *Controller) UploadPending() {
	if c.pending == nil {
		return
	}
	c.SubmitUpload(c.pending)
}

// RemovePending discards the pending file and keeps the uploader as it is.
func (c *Controller) RemovePending() {
	c.pending = nil
}

// onFileRead drops reads that finish after the conversation ended or was reset.
func (c *Controller) onFileRead(gen, epoch uint64, file File, content []byte, err error) {
	if epoch != c.epoch || c.closed {
		c.log().Debug("dropping cv read for a finished conversation", zap.String("name", file.Name))
		return
	}

	if err != nil {
		c.log().Warn("reading cv", zap.Error(err), zap.String("path", file.Path))
		c.system(TextReadFailed)
		return
	}

	if !c.current(gen) || c.connState != Open {
		c.log().Info("connection lost while reading cv", zap.String("name", file.Name))
		c.system(TextUploadNoConn)
		return
	}

	data, err := EncodeCVUpload(file.Name, content)
	if err != nil {
		c.log().Error("encoding cv upload", zap.Error(err))
		c.system(TextReadFailed)
		return
	}

	if err := c.conn.Send(data); err != nil {
		c.log().Warn("sending cv", zap.Error(err))
		c.system(TextUploadNoConn)
		return
	}

	c.log().Info("cv sent", zap.String("name", file.Name), zap.Int("bytes", len(content)))
}
