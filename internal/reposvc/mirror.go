package reposvc

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/5IGI0/Masstuffy/internal/cdx"
	"github.com/5IGI0/Masstuffy/internal/collection"
	"github.com/5IGI0/Masstuffy/internal/index"
	"github.com/5IGI0/Masstuffy/internal/warc"
)

// mirrorRows writes one index.Row per cdx row into idx, active and carrying
// the collection's current dictionary metadata. This is the "Index mirror
// contract" of spec.md §2/§4.7: the core treats the external index as a
// thin collaborator it writes through, and the filesystem root is the
// component that performs the write-through (Collection itself never calls
// idx directly, except inside Rebuild).
func mirrorRows(ctx context.Context, idx index.Client, collUUID string, m collection.Manifest, rows []cdx.Record) error {
	if idx == nil {
		return nil
	}
	for _, row := range rows {
		date, err := cdx.ParseDate(row.Date)
		if err != nil {
			return xerrors.Errorf("mirroring record %s: %w", row.ID, err)
		}
		r := index.Row{
			Date:       date,
			Identifier: row.ID,
			Collection: collUUID,
			URL:        row.URL,
			Filename:   row.Filename,
			Offset:     int64(row.Offset),
			Size:       int64(row.RawSize),
			Type:       row.Type,
			Active:     true,
			DictID:     m.DictID,
			DictAlgo:   m.Compression,
		}
		if err := idx.InsertRecord(ctx, collUUID, r); err != nil {
			return xerrors.Errorf("mirroring record %s into index: %w", row.ID, err)
		}
	}
	return nil
}

// IngestWarc adds one already-parsed WARC record to collUUID and mirrors its
// CDX row into idx. This is the ingest data flow of spec.md §2: serialize,
// (optionally) compress, append, derive the CDX row, write through to the
// index.
func (r *Root) IngestWarc(ctx context.Context, collUUID string, rec *warc.Record, idx index.Client) (cdx.Record, error) {
	c, err := r.GetByUUID(collUUID)
	if err != nil {
		return cdx.Record{}, err
	}
	row, err := c.AddWarc(ctx, rec)
	if err != nil {
		return cdx.Record{}, err
	}
	if err := mirrorRows(ctx, idx, collUUID, c.Manifest(), []cdx.Record{row}); err != nil {
		return cdx.Record{}, err
	}
	return row, nil
}

// IngestRawBatch appends an already-encoded batch of records (the
// server-side raw-ingest passthrough path, spec.md §4.6 AddRawWarcs) and
// mirrors every row into idx.
func (r *Root) IngestRawBatch(ctx context.Context, collUUID string, raw []byte, rows []cdx.Record, idx index.Client) error {
	c, err := r.GetByUUID(collUUID)
	if err != nil {
		return err
	}
	if err := c.AddRawWarcs(ctx, raw, rows); err != nil {
		return err
	}
	return mirrorRows(ctx, idx, collUUID, c.Manifest(), rows)
}
