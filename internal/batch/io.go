package batch

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/segmentio/parquet-go"
)

// recordReader yields input records until io.EOF
type recordReader interface {
	Read() (*InputRecord, error)
	Close() error
}

// resultWriter persists result records in input order
type resultWriter interface {
	Write(record *ResultRecord) error
	Close() error
}

func openReader(path string) (recordReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	switch DetectFileFormat(path) {
	case FormatCSV:
		r, err := newCSVReader(file)
		if err != nil {
			file.Close()
			return nil, err
		}
		return r, nil
	case FormatParquet:
		return &parquetReader{file: file, reader: parquet.NewReader(file)}, nil
	default:
		return &jsonlReader{file: file, decoder: json.NewDecoder(bufio.NewReader(file))}, nil
	}
}

func createWriter(path string) (resultWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	if DetectFileFormat(path) == FormatParquet {
		return &parquetWriter{
			file:   file,
			writer: parquet.NewWriter(file, parquet.SchemaOf(new(ResultRecord))),
		}, nil
	}

	buffered := bufio.NewWriter(file)
	return &jsonlWriter{file: file, buffered: buffered, encoder: json.NewEncoder(buffered)}, nil
}

// csvReader reads a CSV file with a header row. A "text" column is
// required; "id" and "context" are optional.
type csvReader struct {
	file    *os.File
	reader  *csv.Reader
	columns map[string]int
	row     int
}

func newCSVReader(file *os.File) (*csvReader, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["text"]; !ok {
		return nil, errors.New(`CSV header must include a "text" column`)
	}

	return &csvReader{file: file, reader: reader, columns: columns}, nil
}

func (c *csvReader) Read() (*InputRecord, error) {
	fields, err := c.reader.Read()
	if err != nil {
		return nil, err
	}
	c.row++

	record := &InputRecord{
		ID:      c.field(fields, "id"),
		Text:    c.field(fields, "text"),
		Context: c.field(fields, "context"),
	}
	if record.ID == "" {
		record.ID = strconv.Itoa(c.row)
	}
	return record, nil
}

func (c *csvReader) field(fields []string, name string) string {
	i, ok := c.columns[name]
	if !ok || i >= len(fields) {
		return ""
	}
	return fields[i]
}

func (c *csvReader) Close() error {
	return c.file.Close()
}

// jsonlReader reads one JSON object per line
type jsonlReader struct {
	file    *os.File
	decoder *json.Decoder
	row     int
}

func (j *jsonlReader) Read() (*InputRecord, error) {
	var record InputRecord
	if err := j.decoder.Decode(&record); err != nil {
		return nil, err
	}
	j.row++
	if record.ID == "" {
		record.ID = strconv.Itoa(j.row)
	}
	return &record, nil
}

func (j *jsonlReader) Close() error {
	return j.file.Close()
}

type parquetReader struct {
	file   *os.File
	reader *parquet.Reader
	row    int
}

func (p *parquetReader) Read() (*InputRecord, error) {
	var record InputRecord
	if err := p.reader.Read(&record); err != nil {
		return nil, err
	}
	p.row++
	if record.ID == "" {
		record.ID = strconv.Itoa(p.row)
	}
	return &record, nil
}

func (p *parquetReader) Close() error {
	p.reader.Close()
	return p.file.Close()
}

type jsonlWriter struct {
	file     *os.File
	buffered *bufio.Writer
	encoder  *json.Encoder
}

func (j *jsonlWriter) Write(record *ResultRecord) error {
	return j.encoder.Encode(record)
}

func (j *jsonlWriter) Close() error {
	if err := j.buffered.Flush(); err != nil {
		j.file.Close()
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return j.file.Close()
}

type parquetWriter struct {
	file   *os.File
	writer *parquet.Writer
}

func (p *parquetWriter) Write(record *ResultRecord) error {
	return p.writer.Write(record)
}

func (p *parquetWriter) Close() error {
	if err := p.writer.Close(); err != nil {
		p.file.Close()
		return fmt.Errorf("failed to finalize parquet output: %w", err)
	}
	return p.file.Close()
}
