package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/salesflow/salesflow/internal/model"
)

// RejectRecord is one rejected row as serialized to the JSONL
// artifact. Cell values stay verbatim so the row can be repaired
// and reprocessed later.
type RejectRecord struct {
	Line     int      `json:"line"`
	Date     string   `json:"date"`
	Product  string   `json:"product"`
	Category string   `json:"category"`
	Quantity string   `json:"quantity"`
	Price    string   `json:"price"`
	Reasons  []string `json:"reasons"`
}

func toRejectRecord(rej model.Rejected) RejectRecord {
	reasons := make([]string, len(rej.Reasons))
	for i, r := range rej.Reasons {
		reasons[i] = string(r)
	}
	return RejectRecord{
		Line:     rej.Raw.Line,
		Date:     rej.Raw.Date,
		Product:  rej.Raw.Product,
		Category: rej.Raw.Category,
		Quantity: rej.Raw.Quantity,
		Price:    rej.Raw.Price,
		Reasons:  reasons,
	}
}

// writeRejects writes one JSON line per rejected row, in input order.
func writeRejects(path string, rejected []model.Rejected) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("opening rejects file: %w", err)
	}

	enc := json.NewEncoder(file)
	for _, rej := range rejected {
		if err := enc.Encode(toRejectRecord(rej)); err != nil {
			file.Close()
			return fmt.Errorf("encoding rejected row %d: %w", rej.Raw.Line, err)
		}
	}
	return file.Close()
}

// ReadRejects loads a rejects artifact back, for the rejects command.
func ReadRejects(path string) ([]RejectRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []RejectRecord
	dec := json.NewDecoder(file)
	for dec.More() {
		var rec RejectRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("parsing rejects file %s: %w", path, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
