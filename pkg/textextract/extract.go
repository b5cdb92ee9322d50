// Package textextract converts uploaded document bytes into plain text
// suitable for chunking and embedding.
package textextract

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ExtractionError marks a document whose bytes cannot yield text. It is
// terminal: retrying extraction on the same bytes will never succeed.
type ExtractionError struct {
	Kind   string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s", e.Kind, e.Reason)
}

func newErr(kind, format string, args ...any) *ExtractionError {
	return &ExtractionError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Extract dispatches on source kind. Supported kinds: pdf, docx, text,
// markdown, csv, json, paste. Unknown kinds are an ExtractionError.
func Extract(kind string, data []byte) (string, error) {
	switch kind {
	case "pdf":
		return extractPDF(data)
	case "docx":
		return extractDOCX(data)
	case "csv":
		return extractCSV(data)
	case "json":
		return extractJSON(data)
	case "text", "markdown", "paste":
		return extractPlain(kind, data)
	default:
		return "", newErr(kind, "unsupported source kind")
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", newErr("pdf", "parse: %v", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", newErr("pdf", "no extractable text")
	}
	return out, nil
}

// extractDOCX reads word/document.xml from the zip container and keeps the
// character data of w:t runs, with paragraph breaks at w:p boundaries.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", newErr("docx", "open container: %v", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", newErr("docx", "open document.xml: %v", err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", newErr("docx", "read document.xml: %v", err)
			}
			break
		}
	}
	if docXML == nil {
		return "", newErr("docx", "missing word/document.xml")
	}

	var sb strings.Builder
	dec := xml.NewDecoder(bytes.NewReader(docXML))
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", newErr("docx", "parse document.xml: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", newErr("docx", "no extractable text")
	}
	return out, nil
}

// extractCSV renders each record as "header: value" pairs, one record per
// paragraph, so column meaning survives into retrieval.
func extractCSV(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return "", newErr("csv", "parse: %v", err)
	}
	if len(records) == 0 {
		return "", newErr("csv", "empty file")
	}

	header := records[0]
	var sb strings.Builder
	for _, rec := range records[1:] {
		var parts []string
		for i, field := range rec {
			if strings.TrimSpace(field) == "" {
				continue
			}
			name := fmt.Sprintf("col%d", i+1)
			if i < len(header) {
				name = header[i]
			}
			parts = append(parts, fmt.Sprintf("%s: %s", name, field))
		}
		if len(parts) > 0 {
			sb.WriteString(strings.Join(parts, ", "))
			sb.WriteString("\n")
		}
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", newErr("csv", "no extractable text")
	}
	return out, nil
}

// extractJSON flattens the document into sorted "path: value" lines.
func extractJSON(data []byte) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", newErr("json", "parse: %v", err)
	}

	lines := map[string]string{}
	flattenJSON("", v, lines)
	if len(lines) == 0 {
		return "", newErr("json", "no extractable text")
	}

	keys := make([]string, 0, len(lines))
	for k := range lines {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(lines[k])
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

func flattenJSON(prefix string, v any, out map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			flattenJSON(p, child, out)
		}
	case []any:
		for i, child := range t {
			flattenJSON(fmt.Sprintf("%s[%d]", prefix, i), child, out)
		}
	case string:
		if strings.TrimSpace(t) != "" {
			out[prefix] = t
		}
	case float64:
		out[prefix] = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", t), "0"), ".")
	case bool:
		out[prefix] = fmt.Sprintf("%t", t)
	}
}

func extractPlain(kind string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		// Best effort latin-1 fallback for legacy exports.
		runes := make([]rune, len(data))
		for i, b := range data {
			runes[i] = rune(b)
		}
		data = []byte(string(runes))
	}

	out := strings.TrimSpace(string(data))
	if out == "" {
		return "", newErr(kind, "empty document")
	}
	return out, nil
}
