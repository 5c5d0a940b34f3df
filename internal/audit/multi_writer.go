package audit

import "errors"

// MultiWriter fans events out to several writers.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a MultiWriter. Nil writers are skipped.
func NewMultiWriter(ws ...Writer) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range ws {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// Write sends e to every writer. A failing writer does not stop the others;
// the joined error is returned.
func (mw *MultiWriter) Write(e Event) error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Write(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteBatch sends events to every writer.
func (mw *MultiWriter) WriteBatch(events []Event) error {
	var errs []error
	for _, w := range mw.writers {
		if err := WriteBatch(w, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
