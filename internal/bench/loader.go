// Package bench runs the benchmark pipeline: corpus loading, per-document
// fan-out, and reduction into per-type results.
package bench

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/caldarium/qa-bench/internal/model"
)

// docIDRx extracts the canonical document ID from a corpus file name:
// <type>_T<n>_gen<n>, ignoring any trailing suffix before the extension.
// The type segment may itself contain underscores (consent_form).
var docIDRx = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*_T\d+_gen\d+)`)

// DocPair is one document's parser payload and ground truth. A nil Payload
// means the parser produced nothing usable for this document. Info is the
// ingestion-time identity; the checksum covers the payload bytes, or the
// ground-truth bytes when no payload exists.
type DocPair struct {
	DocID       string
	Info        model.Document
	Payload     map[string]any
	GroundTruth map[string]any
	RawText     string
}

// Corpus is one document type's loaded input set, ordered by doc ID.
type Corpus struct {
	DocumentType    string
	Docs            []DocPair
	PayloadHash     string
	GroundTruthHash string
}

// DocID derives the canonical document ID from a file name. Names outside
// the corpus pattern fall back to the base name without extension.
func DocID(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if m := docIDRx.FindStringSubmatch(base); m != nil {
		return m[1]
	}
	return base
}

// LoadCorpus reads one document type's payload and ground-truth directories.
// The ground-truth set defines which documents exist; a ground-truth file
// without a matching payload becomes a DocPair with a nil Payload. Payload
// files with no ground truth cannot be scored and are skipped with a
// warning.
func LoadCorpus(docType, payloadDir, gtDir string) (*Corpus, error) {
	gtFiles, gtHash, err := readDir(gtDir)
	if err != nil {
		return nil, eris.Wrapf(err, "bench: load ground truth for %s", docType)
	}
	if len(gtFiles) == 0 {
		return nil, eris.Errorf("bench: no ground-truth documents in %s", gtDir)
	}

	payloadFiles, payloadHash, err := readDir(payloadDir)
	if err != nil {
		return nil, eris.Wrapf(err, "bench: load payloads for %s", docType)
	}

	gtIDs := map[string]bool{}
	for name := range gtFiles {
		gtIDs[DocID(name)] = true
	}

	payloads := map[string][]byte{}
	payloadNames := map[string]string{}
	for name, data := range payloadFiles {
		id := DocID(name)
		if !gtIDs[id] {
			zap.L().Warn("bench: payload without ground truth skipped",
				zap.String("document_type", docType),
				zap.String("doc_id", id),
			)
			continue
		}
		payloads[id] = data
		payloadNames[id] = name
	}

	corpus := &Corpus{
		DocumentType:    docType,
		PayloadHash:     payloadHash,
		GroundTruthHash: gtHash,
	}
	for name, data := range gtFiles {
		id := DocID(name)
		pair := DocPair{DocID: id}

		if err := json.Unmarshal(data, &pair.GroundTruth); err != nil {
			return nil, eris.Wrapf(err, "bench: parse ground truth %s", name)
		}

		pair.Info = model.Document{
			DocID:            id,
			DocumentType:     docType,
			SourceIdentifier: name,
			ContentChecksum:  checksum(data),
		}
		if raw, ok := payloads[id]; ok {
			pair.Info.SourceIdentifier = payloadNames[id]
			pair.Info.ContentChecksum = checksum(raw)
			var payload map[string]any
			if err := json.Unmarshal(raw, &payload); err != nil {
				zap.L().Warn("bench: unparseable payload",
					zap.String("doc_id", id),
					zap.Error(err),
				)
			} else if len(payload) > 0 {
				pair.Payload = payload
				pair.RawText = flattenText(payload)
			}
		}
		corpus.Docs = append(corpus.Docs, pair)
	}

	sort.Slice(corpus.Docs, func(i, j int) bool { return corpus.Docs[i].DocID < corpus.Docs[j].DocID })
	return corpus, nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// readDir returns the JSON files of dir keyed by name plus a content hash
// over the files in sorted-name order.
func readDir(dir string) (map[string][]byte, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, "", eris.Wrapf(err, "bench: read dir %s", dir)
	}

	files := map[string][]byte{}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, "", eris.Wrapf(err, "bench: read %s", e.Name())
		}
		files[e.Name()] = data
		names = append(names, e.Name())
	}

	sort.Strings(names)
	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write(files[name])
	}
	return files, hex.EncodeToString(h.Sum(nil)), nil
}

// flattenText concatenates the string leaves of a payload in sorted key
// order, the text the legibility check runs over.
func flattenText(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		appendText(&b, payload[k])
	}
	return strings.TrimSpace(b.String())
}

func appendText(b *strings.Builder, v any) {
	switch t := v.(type) {
	case string:
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t)
	case []any:
		for _, e := range t {
			appendText(b, e)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			appendText(b, t[k])
		}
	}
}
