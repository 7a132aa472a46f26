package indexer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

const exportPageSize = 1000

type parquetRow struct {
	Sequence    int64  `parquet:"name=sequence, type=INT64"`
	ID          string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type        string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	AssetID     int64  `parquet:"name=asset_id, type=INT64"`
	Account     string `parquet:"name=account, type=BYTE_ARRAY, convertedtype=UTF8"`
	Attributes  string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
	Fingerprint string `parquet:"name=fingerprint, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt   string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportParquet writes every record matching q to a SNAPPY-compressed parquet
// file at path, paging through the store. q.Limit and q.AfterSeq are used as
// the starting cursor only. It returns the number of rows written.
func (s *Store) ExportParquet(ctx context.Context, path string, q Query) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("indexer: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	written := 0
	q.Limit = exportPageSize
	for {
		page, err := s.Events(ctx, q)
		if err != nil {
			pw.WriteStop()
			file.Close()
			return written, err
		}
		for _, rec := range page {
			row := &parquetRow{
				Sequence:    int64(rec.Sequence),
				ID:          rec.ID.String(),
				Type:        rec.Type,
				AssetID:     int64(rec.AssetID),
				Account:     rec.Account,
				Attributes:  rec.Attributes,
				Fingerprint: rec.Fingerprint,
				CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := pw.Write(row); err != nil {
				pw.WriteStop()
				file.Close()
				return written, fmt.Errorf("indexer: parquet write: %w", err)
			}
			written++
			q.AfterSeq = rec.Sequence
		}
		if len(page) < exportPageSize {
			break
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return written, fmt.Errorf("indexer: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return written, fmt.Errorf("indexer: close parquet file: %w", err)
	}
	return written, nil
}
