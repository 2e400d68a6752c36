package labels

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"Gin_postgres_redis_equipment_tool/models"
)

func TestRender(t *testing.T) {
	serial := "SN-42"
	tests := []struct {
		name  string
		count int
	}{
		{"single", 1},
		{"exactly one page", 24},
		{"spills to second page", 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets := make([]models.Materiel, tt.count)
			for i := range assets {
				assets[i] = models.Materiel{
					ID: fmt.Sprintf("00000000-0000-0000-0000-%012d", i), Name: "Caméra Sony", Type: "camera",
					Location: "Studio A", SerialNumber: &serial,
				}
			}
			pdf, err := Render(assets, DefaultLayout)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
				t.Fatalf("output is not a PDF: %q", pdf[:8])
			}
		})
	}

	if _, err := Render(nil, DefaultLayout); !errors.Is(err, ErrNoAssets) {
		t.Errorf("empty render err = %v", err)
	}
}

func TestPayload(t *testing.T) {
	m := &models.Materiel{ID: "abc"}
	if got := (Layout{Prefix: "https://equipment.example.com/materiel/"}).Payload(m); got != "https://equipment.example.com/materiel/abc" {
		t.Errorf("payload = %q", got)
	}
}
