// Package labelprint formats case labels, pallets and dispatch summaries
// into printer-ready line descriptions. Pure transformation, no state.
package labelprint

import (
	"context"
	"fmt"
	"io"
	"strings"

	"vintrack/internal/domain/label"
	"vintrack/internal/domain/pallet"
)

// CaseLabel renders the lines printed on one physical case label.
func CaseLabel(l label.CaseLabel) []string {
	lines := []string{
		l.Barcode,
		fmt.Sprintf("LWIN %s", l.LWIN18.LWIN11()),
		fmt.Sprintf("%d x %dml", l.LWIN18.CaseConfig(), l.LWIN18.BottleSizeML()),
		fmt.Sprintf("Lot %s", l.LotNumber),
	}
	if !l.IsActive {
		lines = append(lines, "VOID")
	}
	return lines
}

// Pallet renders the lines printed on a pallet placard.
func Pallet(p pallet.Pallet) []string {
	return []string{
		p.PalletCode,
		p.OwnerName,
		fmt.Sprintf("%d cases", p.TotalCases),
		strings.ToUpper(string(p.Status)),
	}
}

// DeliveryNote renders a dispatch summary as a plain-text delivery note.
func DeliveryNote(s pallet.DispatchSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DELIVERY NOTE\n")
	fmt.Fprintf(&b, "Pallet:     %s\n", s.PalletCode)
	fmt.Fprintf(&b, "Owner:      %s\n", s.OwnerName)
	fmt.Fprintf(&b, "Cases:      %d\n", s.TotalCases)
	fmt.Fprintf(&b, "Dispatched: %s by %s\n", s.DispatchedAt.Format("2006-01-02 15:04"), s.DispatchedBy)
	if s.Notes != "" {
		fmt.Fprintf(&b, "Notes:      %s\n", s.Notes)
	}
	b.WriteString("\n")
	for i, barcode := range s.CaseBarcodes {
		fmt.Fprintf(&b, "%3d  %s\n", i+1, barcode)
	}
	return b.String()
}

// NoteWriter writes rendered delivery notes to an output stream, typically
// a spool file or printer socket.
type NoteWriter struct {
	out io.Writer
}

// NewNoteWriter creates a delivery note writer.
func NewNoteWriter(out io.Writer) *NoteWriter {
	return &NoteWriter{out: out}
}

// RenderDeliveryNote implements pallet.DeliveryNoteRenderer.
func (w *NoteWriter) RenderDeliveryNote(_ context.Context, summary pallet.DispatchSummary) error {
	_, err := io.WriteString(w.out, DeliveryNote(summary))
	return err
}
