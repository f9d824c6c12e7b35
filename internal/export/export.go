package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spigell/edge-shortlister/internal/scoring"
)

// NotesSeparator joins the score breakdown notes into one cell.
const NotesSeparator = " | "

// Options selects the optional passthrough columns.
type Options struct {
	Country bool `mapstructure:"country"`
	Gender  bool `mapstructure:"gender"`
	Email   bool `mapstructure:"email"`
}

// Columns returns the export header for opts.
func Columns(opts Options) []string {
	columns := []string{"Name", "Score", "Justification", "Notes", "Resume Link"}
	if opts.Country {
		columns = append(columns, "Country")
	}
	if opts.Gender {
		columns = append(columns, "Gender")
	}
	if opts.Email {
		columns = append(columns, "Email")
	}
	return columns
}

// Row renders one shortlist entry in Columns order.
func Row(r *scoring.Result, opts Options) []string {
	row := []string{
		r.Name,
		strconv.Itoa(r.Score),
		r.Justification,
		strings.Join(r.Notes, NotesSeparator),
		r.ResumeLink,
	}
	if opts.Country {
		row = append(row, r.Country)
	}
	if opts.Gender {
		row = append(row, r.Gender)
	}
	if opts.Email {
		row = append(row, r.Email)
	}
	return row
}

// WriteCSV writes the shortlist entries as CSV.
func WriteCSV(w io.Writer, list *scoring.Shortlist, opts Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns(opts)); err != nil {
		return err
	}
	for _, r := range list.Entries {
		if err := cw.Write(Row(r, opts)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save writes the shortlist to path, choosing CSV or XLSX by extension.
func Save(path string, list *scoring.Shortlist, opts Options) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		err = WriteXLSX(f, list, opts)
	default:
		err = WriteCSV(f, list, opts)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// FileName suggests an export file name for the opportunity.
func FileName(opportunity, ext string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(opportunity)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "_"):
			b.WriteByte('_')
		}
	}
	name := strings.TrimSuffix(b.String(), "_")
	if name == "" {
		name = "shortlist"
	} else {
		name = "shortlist_" + name
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}
