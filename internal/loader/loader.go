// Package loader reads post datasets from disk into schema.PostRecord values.
package loader

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/internal/parquet"
	"github.com/huangsam/tzcluster/schema"
)

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 4 << 20

// ErrMissingID is returned for a record that carries neither an id nor a uri.
var ErrMissingID = errors.New("record has neither id nor uri")

// maxRejectedValue bounds the raw text kept for a skipped row.
const maxRejectedValue = 200

// rawPost is the on-disk shape shared by the JSON encodings.
type rawPost struct {
	ID        looseString `json:"id"`
	URI       looseString `json:"uri"`
	CreatedAt looseString `json:"created_at"`
	Text      looseString `json:"text"`
}

// looseString accepts any JSON scalar. Non-string values keep their literal
// text, so a numeric created_at reaches feature extraction and is rejected there.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	*s = looseString(data)
	return nil
}

// FileSource loads a finite dataset from one file.
type FileSource struct {
	path   string
	format schema.InputFormat
}

var _ contract.PostSource = &FileSource{} // Compile-time check

// NewFileSource creates a source for path. An auto format is resolved from the extension.
func NewFileSource(path string, format schema.InputFormat) (*FileSource, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: input path is required", schema.ErrInput)
	}
	if format == "" || format == schema.AutoInput {
		detected, err := contract.DetectInputFormat(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrInput, err)
		}
		format = detected
	}
	if _, ok := schema.ValidInputFormats[format]; !ok {
		return nil, fmt.Errorf("%w: unsupported input format %q", schema.ErrInput, format)
	}
	return &FileSource{path: path, format: format}, nil
}

// Name identifies the source in logs and run metadata.
func (s *FileSource) Name() string {
	return fmt.Sprintf("%s (%s)", s.path, s.format)
}

// Format reports the resolved input format.
func (s *FileSource) Format() schema.InputFormat {
	return s.format
}

// Load reads the dataset, stopping after limit records when limit > 0.
func (s *FileSource) Load(ctx context.Context, limit int) (*schema.PostBatch, error) {
	if s.format == schema.ParquetInput {
		return s.loadParquet(ctx, limit)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrInput, err)
	}
	defer func() { _ = f.Close() }()

	switch s.format {
	case schema.JSONLInput:
		return ReadJSONL(ctx, f, limit)
	case schema.JSONInput:
		return ReadJSON(ctx, f, limit)
	default: // CSV
		return ReadCSV(ctx, f, limit)
	}
}

func (s *FileSource) loadParquet(ctx context.Context, limit int) (*schema.PostBatch, error) {
	rows, err := parquet.ReadPostsParquet(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrInput, err)
	}
	batch := &schema.PostBatch{}
	for i, r := range parquet.ConvertPosts(rows) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.ID == "" {
			batch.Skip(rejected(i+1, "", ErrMissingID))
			continue
		}
		batch.Records = append(batch.Records, r)
		if limit > 0 && len(batch.Records) >= limit {
			break
		}
	}
	return batch, nil
}

// ReadJSONL reads one JSON object per line. Blank lines are skipped and
// lines that do not decode to a post are counted as rejected.
func ReadJSONL(ctx context.Context, r io.Reader, limit int) (*schema.PostBatch, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	batch := &schema.PostBatch{}
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		record, err := decodePost([]byte(text))
		if err != nil {
			batch.Skip(rejected(line, text, err))
			continue
		}
		batch.Records = append(batch.Records, record)
		if limit > 0 && len(batch.Records) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrInput, err)
	}
	return batch, nil
}

// ReadJSON reads a top-level JSON array of post objects without buffering the whole array.
// Elements that are valid JSON but not a usable post are counted as rejected.
func ReadJSON(ctx context.Context, r io.Reader, limit int) (*schema.PostBatch, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrInput, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array of posts", schema.ErrInput)
	}

	batch := &schema.PostBatch{}
	for index := 1; dec.More(); index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// A syntax error leaves the decoder with no way to find the next element
		var element json.RawMessage
		if err := dec.Decode(&element); err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", schema.ErrInput, index, err)
		}
		record, err := decodePost(element)
		if err != nil {
			batch.Skip(rejected(index, string(element), err))
			continue
		}
		batch.Records = append(batch.Records, record)
		if limit > 0 && len(batch.Records) >= limit {
			return batch, nil
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrInput, err)
	}
	return batch, nil
}

// ReadCSV reads a CSV file with a header row naming id, uri, created_at and text columns.
// Other columns are kept in PostRecord.Extra. A header without created_at is an error;
// a malformed row is counted as rejected.
func ReadCSV(ctx context.Context, r io.Reader, limit int) (*schema.PostBatch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV header: %v", schema.ErrInput, err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["created_at"]; !ok {
		return nil, fmt.Errorf("%w: CSV header has no created_at column", schema.ErrInput)
	}

	field := func(row []string, name string) string {
		if i, ok := columns[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	batch := &schema.PostBatch{}
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, fmt.Errorf("%w: record %d: %w", schema.ErrInput, line, err)
			}
			batch.Skip(rejected(line, strings.Join(row, ","), err))
			continue
		}
		raw := rawPost{
			ID:        looseString(field(row, "id")),
			URI:       looseString(field(row, "uri")),
			CreatedAt: looseString(field(row, "created_at")),
			Text:      looseString(field(row, "text")),
		}
		record, err := raw.toRecord()
		if err != nil {
			batch.Skip(rejected(line, strings.Join(row, ","), err))
			continue
		}
		for name, i := range columns {
			switch name {
			case "id", "uri", "created_at", "text":
				continue
			}
			if i < len(row) {
				if record.Extra == nil {
					record.Extra = make(map[string]string)
				}
				record.Extra[name] = row[i]
			}
		}
		batch.Records = append(batch.Records, record)
		if limit > 0 && len(batch.Records) >= limit {
			break
		}
	}
	return batch, nil
}

// decodePost turns one JSON object into a record.
func decodePost(data []byte) (schema.PostRecord, error) {
	var raw rawPost
	if err := json.Unmarshal(data, &raw); err != nil {
		return schema.PostRecord{}, err
	}
	return raw.toRecord()
}

func (p rawPost) toRecord() (schema.PostRecord, error) {
	id := strings.TrimSpace(string(p.ID))
	if id == "" {
		id = strings.TrimSpace(string(p.URI))
	}
	if id == "" {
		return schema.PostRecord{}, ErrMissingID
	}
	return schema.PostRecord{ID: id, CreatedAt: string(p.CreatedAt), Text: string(p.Text)}, nil
}

// rejected describes a skipped row. The raw text is truncated.
func rejected(index int, value string, err error) schema.RejectedRecord {
	if len(value) > maxRejectedValue {
		value = value[:maxRejectedValue] + "..."
	}
	return schema.RejectedRecord{
		Record: index,
		Value:  value,
		Reason: fmt.Sprintf("record %d: %v", index, err),
	}
}
