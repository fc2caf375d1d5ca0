package catalog

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"mangalib/pkg/models"
)

var csvHeader = []string{"source", "id", "title", "author", "category_id", "status", "year", "total_chapters", "tags", "image"}

// ExportCSV writes every cached document matching q, ordered like List,
// and returns how many rows were written. q.Limit is the batch size.
func (r *Repo) ExportCSV(ctx context.Context, w io.Writer, q ListQuery) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}

	q.Limit = maxListLimit
	q.Offset = 0
	written := 0
	for {
		batch, err := r.List(ctx, q)
		if err != nil {
			return written, err
		}
		for _, d := range batch {
			if err := cw.Write(csvRow(d)); err != nil {
				return written, err
			}
			written++
		}
		if len(batch) < q.Limit {
			break
		}
		q.Offset += len(batch)
	}

	cw.Flush()
	return written, cw.Error()
}

func csvRow(d models.LibraryDocument) []string {
	year := ""
	if d.Year > 0 {
		year = strconv.Itoa(d.Year)
	}
	return []string{
		d.Source,
		d.ID,
		d.Title,
		d.Author,
		d.CategoryID,
		d.Status,
		year,
		strconv.Itoa(d.TotalChapters),
		strings.Join(d.Tags, "|"),
		d.Image,
	}
}
