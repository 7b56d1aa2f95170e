package imdpdf

import (
	"errors"
	"math"
	"testing"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall"
)

// Extracted text shaped like the IMD normals tables: a title line, a column
// header, and one row per station with an annual total column.
const sampleNormalsText = `CLIMATOLOGICAL NORMALS 1991-2020 MONTHLY RAINFALL (MM)
STATION JAN FEB MAR APR MAY JUN JUL AUG SEP OCT NOV DEC ANNUAL
NEW DELHI (SAFDARJUNG)  19.0 22.0 16.0 10.0 30.0 74.0 210.0 247.0 124.0 15.0 5.0 9.0 781.0
MUMBAI (SANTACRUZ)  0.6 0.4 0.0 0.6 11.0 537.0 794.0 585.0 327.0 65.0 17.0 3.0 2340.6
SRINAGAR  63.0 78.0 104.0 84.0 65.0 38.0 57.0 66.0 36.0 29.0 26.0 47.0 693.0
`

func TestParseTextRows(t *testing.T) {
	p := &Provider{PDFPath: "normals.pdf"}

	rows, err := p.ParseText(sampleNormalsText)
	if err != nil {
		t.Fatalf("ParseText returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	delhi := rows[0]
	if delhi.Station != "NEW DELHI (SAFDARJUNG)" {
		t.Errorf("Station = %q", delhi.Station)
	}
	if delhi.MonthlyMM[0] != 19.0 {
		t.Errorf("January = %g", delhi.MonthlyMM[0])
	}
	if delhi.MonthlyMM[6] != 210.0 {
		t.Errorf("July = %g", delhi.MonthlyMM[6])
	}
	if delhi.MonthlyMM[11] != 9.0 {
		t.Errorf("December = %g; the annual column must not shift the months", delhi.MonthlyMM[11])
	}

	if rows[1].MonthlyMM[6] != 794.0 {
		t.Errorf("Mumbai July = %g", rows[1].MonthlyMM[6])
	}
}

func TestParseTextWithoutAnnualColumn(t *testing.T) {
	p := &Provider{}

	rows, err := p.ParseText("PUNE  2 1 3 14 34 132 188 112 133 90 30 6\n")
	if err != nil {
		t.Fatalf("ParseText returned error: %v", err)
	}
	if len(rows) != 1 || rows[0].Station != "PUNE" {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].MonthlyMM[5] != 132 {
		t.Errorf("June = %g", rows[0].MonthlyMM[5])
	}
}

func TestParseTextSkipsMalformedRows(t *testing.T) {
	p := &Provider{}

	text := `SOME PREAMBLE ABOUT RAINFALL
SHORT ROW 1.0 2.0 3.0
NAGPUR  12 15 15 12 15 174 322 281 167 62 10 7 1092
`
	rows, err := p.ParseText(text)
	if err != nil {
		t.Fatalf("ParseText returned error: %v", err)
	}
	if len(rows) != 1 || rows[0].Station != "NAGPUR" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestParseTextEmpty(t *testing.T) {
	p := &Provider{}

	if _, err := p.ParseText("no tabular data here"); !errors.Is(err, rainfall.ErrParseFailed) {
		t.Fatalf("expected ErrParseFailed, got %v", err)
	}
}

func TestProfileFromRows(t *testing.T) {
	p := &Provider{PDFPath: "normals.pdf"}
	rows, err := p.ParseText(sampleNormalsText)
	if err != nil {
		t.Fatalf("ParseText returned error: %v", err)
	}

	profile, err := p.profileFromRows(rows, 28.61, 77.21)
	if err != nil {
		t.Fatalf("profileFromRows returned error: %v", err)
	}
	if profile.Station != "NEW DELHI (SAFDARJUNG)" {
		t.Errorf("Station = %q", profile.Station)
	}
	if math.Abs(profile.AnnualMM-781.0) > 1e-9 {
		t.Errorf("AnnualMM = %g, want 781", profile.AnnualMM)
	}
	if profile.Source == "" {
		t.Error("Source not set")
	}
}

func TestProfileFromRowsStationMissing(t *testing.T) {
	p := &Provider{PDFPath: "normals.pdf"}
	rows, err := p.ParseText(sampleNormalsText)
	if err != nil {
		t.Fatalf("ParseText returned error: %v", err)
	}

	// Bengaluru is in coverage range but absent from the document.
	if _, err := p.profileFromRows(rows, 12.97, 77.59); !errors.Is(err, rainfall.ErrNoCoverage) {
		t.Fatalf("expected ErrNoCoverage, got %v", err)
	}
}

func TestProfileFromRowsOutsideCoverage(t *testing.T) {
	p := &Provider{}
	rows := []StationNormals{{Station: "NEW DELHI (SAFDARJUNG)"}}

	if _, err := p.profileFromRows(rows, 59.91, 10.75); !errors.Is(err, rainfall.ErrNoCoverage) {
		t.Fatalf("expected ErrNoCoverage, got %v", err)
	}
}

func TestProviderRegistered(t *testing.T) {
	reg, ok := rainfall.Get("imdpdf")
	if !ok {
		t.Fatal("imdpdf provider not registered")
	}
	if reg.Key() != "imdpdf" {
		t.Errorf("Key = %q", reg.Key())
	}
}
