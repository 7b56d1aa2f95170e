// Package imdpdf parses monthly rainfall normals out of IMD climatological
// normals PDF documents and serves them through the provider registry.
package imdpdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall/imd"
)

func init() {
	rainfall.Register(NewProvider())
}

// DefaultPDFPath is where the normals document is expected on disk.
const DefaultPDFPath = "normals_imd.pdf"

// StationNormals is one parsed table row.
type StationNormals struct {
	Station   string
	MonthlyMM [12]float64
}

// Provider parses a normals document and resolves coordinates to the row of
// the nearest known station.
type Provider struct {
	PDFPath string
}

// NewProvider creates a provider reading the document at
// RAINFORGE_IMD_NORMALS_PDF, falling back to DefaultPDFPath.
func NewProvider() *Provider {
	path := os.Getenv("RAINFORGE_IMD_NORMALS_PDF")
	if path == "" {
		path = DefaultPDFPath
	}
	return &Provider{PDFPath: path}
}

func (p *Provider) Key() string {
	return "imdpdf"
}

func (p *Provider) Name() string {
	return "IMD climatological normals document"
}

func (p *Provider) SourceURL() string {
	return "https://www.imdpune.gov.in/"
}

// Normals parses the configured document and returns the row for the
// station nearest the coordinates.
func (p *Provider) Normals(ctx context.Context, lat, lng float64) (*rainfall.Profile, error) {
	rows, err := p.ParsePDF(p.PDFPath)
	if err != nil {
		return nil, err
	}
	return p.profileFromRows(rows, lat, lng)
}

func (p *Provider) profileFromRows(rows []StationNormals, lat, lng float64) (*rainfall.Profile, error) {
	name, _, ok := imd.NearestStation(lat, lng)
	if !ok {
		return nil, fmt.Errorf("no station near (%.4f, %.4f): %w", lat, lng, rainfall.ErrNoCoverage)
	}
	row := findStation(rows, name)
	if row == nil {
		return nil, fmt.Errorf("station %q not present in %s: %w", name, p.PDFPath, rainfall.ErrNoCoverage)
	}
	return &rainfall.Profile{
		MonthlyMM: row.MonthlyMM,
		AnnualMM:  rainfall.AnnualTotal(row.MonthlyMM),
		Source:    "IMD normals document " + filepath.Base(p.PDFPath),
		Station:   row.Station,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// ParsePDF parses station normals from a PDF file at the given path.
func (p *Provider) ParsePDF(path string) ([]StationNormals, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	rc, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}

	return p.ParseText(buf.String())
}

// A table row: station name followed by 12 monthly values and optionally an
// annual total.
var rowRe = regexp.MustCompile(`(?m)^\s*([A-Za-z][^\n\d]{0,46}?)\s+((?:\d+(?:\.\d+)?[ \t]+){11,12}\d+(?:\.\d+)?)\s*$`)

// ParseText parses station normals from extracted text (useful for testing).
func (p *Provider) ParseText(text string) ([]StationNormals, error) {
	var rows []StationNormals
	for _, m := range rowRe.FindAllStringSubmatch(text, -1) {
		fields := strings.Fields(m[2])
		if len(fields) == 13 {
			// Trailing annual column.
			fields = fields[:12]
		}
		if len(fields) != 12 {
			continue
		}

		row := StationNormals{Station: strings.TrimSpace(m[1])}
		ok := true
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				ok = false
				break
			}
			row.MonthlyMM[i] = v
		}
		if ok {
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("no station rows found: %w", rainfall.ErrParseFailed)
	}
	return rows, nil
}

func findStation(rows []StationNormals, name string) *StationNormals {
	want := normalizeStation(name)
	for i := range rows {
		if normalizeStation(rows[i].Station) == want {
			return &rows[i]
		}
	}
	return nil
}

func normalizeStation(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
