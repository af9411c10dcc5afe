package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-ikea/models"
)

func writerProduct() *models.Product {
	price := 129.00
	rating := 4.5
	reviews := 321
	return &models.Product{
		ID:           "40299687",
		Name:         "POÄNG",
		Price:        &price,
		Currency:     "USD",
		Availability: "in stock",
		Rating:       &rating,
		ReviewCount:  &reviews,
		MainImage:    "https://www.ikea.com/img/poaeng.jpg",
		Images:       []string{"https://www.ikea.com/img/poaeng.jpg", "https://www.ikea.com/img/poaeng-side.jpg"},
		Type:         "Armchair",
		Features:     []string{"Layer-glued bent birch frame"},
		SourceURL:    "https://www.ikea.com/us/en/p/poaeng-armchair-40299687/",
		Category:     "chairs",
		RetrievedAt:  time.Date(2026, 8, 29, 13, 9, 13, 0, time.UTC),
	}
}

func TestCSVWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	if err := writer.Write([]*models.Product{writerProduct()}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if records[0][0] != "id" || records[0][1] != "name" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	row := records[1]
	if row[0] != "40299687" || row[2] != "129" || row[3] != "USD" {
		t.Fatalf("unexpected row: %v", row)
	}
	if row[8] != "https://www.ikea.com/img/poaeng.jpg|https://www.ikea.com/img/poaeng-side.jpg" {
		t.Fatalf("images column = %q", row[8])
	}
}

func TestCSVWriterEmptyOptionalFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	p := &models.Product{
		ID:           "10214563",
		Name:         "BILLY",
		Availability: models.AvailabilityUnknown,
		SourceURL:    "https://www.ikea.com/us/en/p/billy-10214563/",
		Category:     "bookcases",
		RetrievedAt:  time.Now(),
	}
	if err := writer.Write([]*models.Product{p}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, _ := os.Open(path)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	row := records[1]
	// Nil price and rating serialize as empty cells, not zeros.
	if row[2] != "" || row[5] != "" || row[6] != "" {
		t.Fatalf("optional columns should be empty: %v", row)
	}
	if row[4] != models.AvailabilityUnknown {
		t.Fatalf("availability = %q", row[4])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	if err := writer.Write([]*models.Product{writerProduct()}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var decoded models.Product
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		if decoded.ID != "40299687" {
			t.Fatalf("decoded id = %q", decoded.ID)
		}
		if decoded.Price == nil || *decoded.Price != 129.00 {
			t.Fatalf("decoded price = %v", decoded.Price)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if count != 1 {
		t.Fatalf("json lines=%d, want 1", count)
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "products.csv")
	jsonPath := filepath.Join(dir, "products.jsonl")

	writer, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}

	if err := writer.Write([]*models.Product{writerProduct()}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}

func TestMultiWriterFansOutToEverySink(t *testing.T) {
	first := &mockWriter{}
	second := &mockWriter{}
	writer := NewMultiWriter(first, second)

	if err := writer.Write([]*models.Product{writerProduct()}); err != nil {
		t.Fatalf("write multi: %v", err)
	}
	if first.totalWritten() != 1 || second.totalWritten() != 1 {
		t.Fatalf("sink writes = %d/%d, want 1/1", first.totalWritten(), second.totalWritten())
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("close multi: %v", err)
	}
	if !first.closed || !second.closed {
		t.Error("close should reach every sink")
	}

	second.validateErr = errors.New("empty output")
	if err := writer.Validate(); err == nil {
		t.Error("validate should surface a failing sink")
	}
}
