package report

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/salesflow/salesflow/internal/model"
)

const parquetBatchSize = 4096

// salesSchema returns the Arrow schema for the clean-data export.
func salesSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "date", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "product", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "category", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "quantity", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
		{Name: "price", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "line_revenue", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
		{Name: "month", Type: arrow.BinaryTypes.String, Nullable: false},
	}, nil)
}

// parquetWriter streams accepted records into a Parquet file in
// batches. Money columns are float64: the export feeds analytical
// queries, exact decimals live in the run artifacts.
type parquetWriter struct {
	schema *arrow.Schema
	writer *pqarrow.FileWriter

	dateBuilder     *array.StringBuilder
	productBuilder  *array.StringBuilder
	categoryBuilder *array.StringBuilder
	quantityBuilder *array.Int64Builder
	priceBuilder    *array.Float64Builder
	revenueBuilder  *array.Float64Builder
	monthBuilder    *array.StringBuilder

	rowCount int
	total    int64
}

func newParquetWriter(output *os.File) (*parquetWriter, error) {
	allocator := memory.NewGoAllocator()
	schema := salesSchema()

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(true),
		parquet.WithDataPageSize(1024*1024),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
	)

	writer, err := pqarrow.NewFileWriter(schema, output, writerProps, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("creating parquet writer: %w", err)
	}

	w := &parquetWriter{
		schema:          schema,
		writer:          writer,
		dateBuilder:     array.NewStringBuilder(allocator),
		productBuilder:  array.NewStringBuilder(allocator),
		categoryBuilder: array.NewStringBuilder(allocator),
		quantityBuilder: array.NewInt64Builder(allocator),
		priceBuilder:    array.NewFloat64Builder(allocator),
		revenueBuilder:  array.NewFloat64Builder(allocator),
		monthBuilder:    array.NewStringBuilder(allocator),
	}
	w.dateBuilder.Reserve(parquetBatchSize)
	w.productBuilder.Reserve(parquetBatchSize)
	w.categoryBuilder.Reserve(parquetBatchSize)
	w.quantityBuilder.Reserve(parquetBatchSize)
	w.priceBuilder.Reserve(parquetBatchSize)
	w.revenueBuilder.Reserve(parquetBatchSize)
	w.monthBuilder.Reserve(parquetBatchSize)

	return w, nil
}

func (w *parquetWriter) append(rec model.Record) error {
	w.dateBuilder.Append(rec.Day())
	w.productBuilder.Append(rec.Product)
	w.categoryBuilder.Append(rec.Category)
	w.quantityBuilder.Append(rec.Quantity)
	w.priceBuilder.Append(rec.Price.InexactFloat64())
	w.revenueBuilder.Append(rec.LineRevenue.InexactFloat64())
	w.monthBuilder.Append(rec.Month())

	w.rowCount++
	if w.rowCount >= parquetBatchSize {
		return w.flushBatch()
	}
	return nil
}

func (w *parquetWriter) flushBatch() error {
	if w.rowCount == 0 {
		return nil
	}

	arrays := []arrow.Array{
		w.dateBuilder.NewArray(),
		w.productBuilder.NewArray(),
		w.categoryBuilder.NewArray(),
		w.quantityBuilder.NewArray(),
		w.priceBuilder.NewArray(),
		w.revenueBuilder.NewArray(),
		w.monthBuilder.NewArray(),
	}
	defer func() {
		for _, a := range arrays {
			a.Release()
		}
	}()

	batch := array.NewRecord(w.schema, arrays, int64(w.rowCount))
	defer batch.Release()

	if err := w.writer.Write(batch); err != nil {
		return fmt.Errorf("writing record batch: %w", err)
	}

	w.total += int64(w.rowCount)
	w.rowCount = 0
	return nil
}

func (w *parquetWriter) close() error {
	if err := w.flushBatch(); err != nil {
		return err
	}
	if err := w.writer.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}

	w.dateBuilder.Release()
	w.productBuilder.Release()
	w.categoryBuilder.Release()
	w.quantityBuilder.Release()
	w.priceBuilder.Release()
	w.revenueBuilder.Release()
	w.monthBuilder.Release()
	return nil
}

// writeParquet exports the accepted records and returns the row count.
func writeParquet(path string, records []model.Record) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating parquet file: %w", err)
	}
	// The parquet writer closes the sink; this covers early errors.
	defer file.Close()

	w, err := newParquetWriter(file)
	if err != nil {
		return 0, err
	}

	for _, rec := range records {
		if err := w.append(rec); err != nil {
			return 0, err
		}
	}
	if err := w.close(); err != nil {
		return 0, err
	}
	return w.total, nil
}
