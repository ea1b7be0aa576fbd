package manifest

import (
	"encoding/xml"
	"fmt"
	"io"
)

// Read parses a full manifest document, including every entry, from r.
func Read(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)

	var doc Document
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("manifest: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case rootElement:
			for _, attr := range start.Attr {
				if attr.Name.Local == "version" {
					doc.Version = attr.Value
				}
			}
		case "creator":
			if err := dec.DecodeElement(&doc.Creator, &start); err != nil {
				return nil, err
			}
		case "source":
			if err := dec.DecodeElement(&doc.Source, &start); err != nil {
				return nil, err
			}
		case "entry":
			var e Entry
			if err := dec.DecodeElement(&e, &start); err != nil {
				return nil, err
			}
			doc.Entries = append(doc.Entries, e)
		}
	}
	return &doc, nil
}
