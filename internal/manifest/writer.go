package manifest

import (
	"encoding/xml"
	"io"
)

// Writer streams a manifest document to w one entry at a time, so a large
// extraction does not need its full entry list held in memory at once.
type Writer struct {
	w   io.Writer
	enc *xml.Encoder
}

const rootElement = "vaultimg-manifest"

// NewWriter opens a streaming manifest writer and writes doc's header
// (creator, source), leaving the root element open for entries.
func NewWriter(w io.Writer, doc *Document) (*Writer, error) {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return nil, err
	}

	start := xml.StartElement{
		Name: xml.Name{Local: rootElement},
		Attr: []xml.Attr{{Name: xml.Name{Local: "version"}, Value: doc.Version}},
	}
	if err := enc.EncodeToken(start); err != nil {
		return nil, err
	}
	if err := enc.EncodeElement(doc.Creator, xml.StartElement{Name: xml.Name{Local: "creator"}}); err != nil {
		return nil, err
	}
	if err := enc.EncodeElement(doc.Source, xml.StartElement{Name: xml.Name{Local: "source"}}); err != nil {
		return nil, err
	}

	return &Writer{w: w, enc: enc}, nil
}

// WriteEntry appends one entry element.
func (w *Writer) WriteEntry(e Entry) error {
	return w.enc.Encode(e)
}

// Close writes the closing root element and flushes the encoder.
func (w *Writer) Close() error {
	if err := w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: rootElement}}); err != nil {
		return err
	}
	return w.enc.Flush()
}
