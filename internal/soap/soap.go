// Package soap builds request envelopes for the insurance vendor's web
// service and extracts flat records from its responses. The vendor returns
// repeating elements whose children are simple <key>value</key> pairs;
// extraction preserves that flat contract while parsing with encoding/xml
// so namespaces and nesting are handled properly.
package soap

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

const vendorNamespace = "http://www.coris.com.br/WebService/"

// Action returns the SOAPAction header value for a remote method.
func Action(method string) string {
	return vendorNamespace + method
}

// Envelope produces a SOAP 1.1 envelope invoking method with one
// <param name value/> element per entry. Parameters are emitted in sorted
// order and values are XML-escaped.
func Envelope(method string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	b.WriteString(`<soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">`)
	b.WriteString("<soap:Body>")
	fmt.Fprintf(&b, `<%s xmlns="%s">`, method, vendorNamespace)
	for _, k := range keys {
		fmt.Fprintf(&b, `<param name="%s" value="%s" />`, escape(k), escape(params[k]))
	}
	fmt.Fprintf(&b, "</%s>", method)
	b.WriteString("</soap:Body>")
	b.WriteString("</soap:Envelope>")
	return b.String()
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// Records returns one ordered map per occurrence of tag in doc, holding
// the character data of each immediate child element. Elements nested
// deeper than one level below tag are skipped; element names match on
// local name regardless of namespace.
func Records(doc, tag string) []map[string]string {
	dec := xml.NewDecoder(strings.NewReader(doc))
	var records []map[string]string
	for {
		tok, err := dec.Token()
		if err != nil {
			return records
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != tag {
			continue
		}
		rec, err := decodeRecord(dec, start)
		if err != nil {
			return records
		}
		records = append(records, rec)
	}
}

// decodeRecord consumes tokens up to the end of start, collecting the
// text of each immediate child element.
func decodeRecord(dec *xml.Decoder, start xml.StartElement) (map[string]string, error) {
	rec := make(map[string]string)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			val, err := decodeText(dec, t)
			if err != nil {
				return nil, err
			}
			rec[t.Name.Local] = val
		case xml.EndElement:
			if t.Name == start.Name {
				return rec, nil
			}
		}
	}
}

// decodeText returns the trimmed character data directly inside start,
// skipping any nested elements.
func decodeText(dec *xml.Decoder, start xml.StartElement) (string, error) {
	var b strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			if depth == 0 {
				b.Write(t)
			}
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 && t.Name == start.Name {
				return strings.TrimSpace(b.String()), nil
			}
			if depth > 0 {
				depth--
			}
		}
	}
}

// Value returns the text of the first occurrence of tag in doc, and
// whether one was found.
func Value(doc, tag string) (string, bool) {
	vals := extract(doc, tag, 1)
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Values returns the text of every occurrence of tag in doc, in order.
func Values(doc, tag string) []string {
	return extract(doc, tag, -1)
}

func extract(doc, tag string, limit int) []string {
	dec := xml.NewDecoder(strings.NewReader(doc))
	var vals []string
	for {
		if limit >= 0 && len(vals) >= limit {
			return vals
		}
		tok, err := dec.Token()
		if err != nil {
			return vals
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != tag {
			continue
		}
		val, err := decodeText(dec, start)
		if err != nil {
			return vals
		}
		vals = append(vals, val)
	}
}
