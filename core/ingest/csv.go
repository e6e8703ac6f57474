package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"PlaylistInsight/core/pipeline"
	"PlaylistInsight/logger"
	"PlaylistInsight/model"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// TimestampLayout is the suffix layout of published file names.
const TimestampLayout = "20060102_150405"

// Options controls CSV parsing.
type Options struct {
	Delimiter rune
	// NaNValues are read as missing by the dataframe loader. The normalizer
	// applies its own null tokens on top.
	NaNValues []string
}

func (o Options) load() []dataframe.LoadOption {
	opts := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		// 所有列按字符串读入，类型转换交给 normalizer
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	}
	if len(o.NaNValues) > 0 {
		opts = append(opts, dataframe.NaNValues(o.NaNValues))
	}
	return opts
}

// readRows reads every CSV row, tolerating ragged rows: short rows are padded
// with empty cells and extra cells are cut. A leading UTF-8 BOM is removed.
func readRows(r io.Reader, opts Options) ([][]string, error) {
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	header := rows[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	ragged := 0
	for i := 1; i < len(rows); i++ {
		switch row := rows[i]; {
		case len(row) < len(header):
			rows[i] = append(row, make([]string, len(header)-len(row))...)
			ragged++
		case len(row) > len(header):
			rows[i] = row[:len(header)]
			ragged++
		}
	}
	if ragged > 0 {
		logger.Warn("CSV 行的列数与表头不一致，已补齐或截断", logger.Int("rows", ragged))
	}
	return rows, nil
}

// ReadRecords reads a headed CSV into raw records keyed by column name.
// A file with only a header yields no records.
func ReadRecords(r io.Reader, opts Options) ([]pipeline.RawRecord, error) {
	rows, err := readRows(r, opts)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	df := dataframe.LoadRecords(rows, opts.load()...)
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}

	maps := df.Maps()
	out := make([]pipeline.RawRecord, len(maps))
	for i, row := range maps {
		out[i] = pipeline.RawRecord(row)
	}
	return out, nil
}

// ReadFile reads the CSV at path. An empty path yields no records.
func ReadFile(path string, opts Options) ([]pipeline.RawRecord, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := ReadRecords(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Frame builds a string dataframe of records with one column per schema
// field; missing values are empty cells.
func Frame[T any](records []T, s *pipeline.Schema[T]) dataframe.DataFrame {
	cols := make([]series.Series, 0, len(s.Fields)+1)
	keys := make([]string, len(records))
	for i := range records {
		keys[i] = s.Key(&records[i])
	}
	cols = append(cols, series.New(keys, series.String, s.KeyName))
	for _, f := range s.Fields {
		vals := make([]string, len(records))
		for i := range records {
			vals[i] = f.Format(&records[i])
		}
		cols = append(cols, series.New(vals, series.String, f.Name))
	}
	return dataframe.New(cols...)
}

// WriteRecords writes records as CSV in schema column order.
func WriteRecords[T any](w io.Writer, records []T, s *pipeline.Schema[T]) error {
	if err := Frame(records, s).WriteCSV(w); err != nil {
		return fmt.Errorf("write %s csv: %w", s.Name, err)
	}
	return nil
}

// WriteTracks writes cleaned tracks as CSV.
func WriteTracks(w io.Writer, tracks []model.Track) error {
	return WriteRecords(w, tracks, pipeline.TrackSchema)
}

// WritePlaylists writes cleaned playlists as CSV.
func WritePlaylists(w io.Writer, playlists []model.Playlist) error {
	return WriteRecords(w, playlists, pipeline.PlaylistSchema)
}

// Outputs are the file names of one published run.
type Outputs struct {
	Tracks    string `json:"tracks"`
	Playlists string `json:"playlists"`
	Dashboard string `json:"dashboard"`
}

// OutputNames returns clean_tracks_<ts>.csv, clean_playlists_<ts>.csv and
// dashboard_<ts>.json under dir.
func OutputNames(dir string, ts time.Time) Outputs {
	suffix := ts.UTC().Format(TimestampLayout)
	return Outputs{
		Tracks:    filepath.Join(dir, "clean_tracks_"+suffix+".csv"),
		Playlists: filepath.Join(dir, "clean_playlists_"+suffix+".csv"),
		Dashboard: filepath.Join(dir, "dashboard_"+suffix+".json"),
	}
}

// WriteFile creates path and writes with fn.
func WriteFile(path string, fn func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(f)
}

// DashboardFiles returns the dashboard_*.json files in dir, newest first.
func DashboardFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "dashboard_*.json"))
	if err != nil {
		return nil, err
	}
	// 时间戳后缀按字典序即按时间排序
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches, nil
}

// LatestDashboardFile returns the newest dashboard_*.json in dir, or an
// error wrapping fs.ErrNotExist when there is none.
func LatestDashboardFile(dir string) (string, error) {
	files, err := DashboardFiles(dir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no dashboard_*.json in %s: %w", dir, fs.ErrNotExist)
	}
	return files[0], nil
}
