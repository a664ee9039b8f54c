package main

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vault"
)

const timeLayout = "2006-01-02 15:04:05"

var columnTitles = [...]string{"#", "License Key", "Created"}

func newRecordTable() *widget.Table {
	return widget.NewTable(
		func() (int, int) { return 1, len(columnTitles) },
		func() fyne.CanvasObject {
			bg := canvas.NewRectangle(color.Transparent)
			hdr := canvas.NewText("", color.White)
			lbl := widget.NewLabel("")
			return container.NewStack(
				bg,
				container.NewPadded(hdr),
				container.NewPadded(lbl),
			)
		},
		func(widget.TableCellID, fyne.CanvasObject) {},
	)
}

// cellText returns the body text for a record cell.
func cellText(index int, r vault.Record, col int) string {
	switch col {
	case 0:
		return fmt.Sprintf("%d", index)
	case 1:
		return r.Key
	case 2:
		return r.CreatedAt.Local().Format(timeLayout)
	}
	return ""
}

// refreshTable rebinds t to records. Row 0 is the header.
func refreshTable(t *widget.Table, records vault.Vault, th accentTheme) {
	rows := len(records) + 1
	t.Length = func() (int, int) { return rows, len(columnTitles) }

	t.UpdateCell = func(id widget.TableCellID, obj fyne.CanvasObject) {
		stack := obj.(*fyne.Container)
		bg := stack.Objects[0].(*canvas.Rectangle)
		hdr := stack.Objects[1].(*fyne.Container).Objects[0].(*canvas.Text)
		lbl := stack.Objects[2].(*fyne.Container).Objects[0].(*widget.Label)

		if id.Row == 0 {
			bg.FillColor = royalBlue
			bg.Show()
			hdr.TextSize = theme.TextSize()
			hdr.TextStyle = fyne.TextStyle{Bold: true}
			hdr.Text = columnTitles[id.Col]
			lbl.Hide()
			hdr.Show()
			hdr.Refresh()
			bg.Refresh()
			return
		}

		hdr.Hide()
		lbl.Show()
		if id.Row%2 == 0 {
			bg.FillColor = th.zebra()
			bg.Show()
		} else {
			bg.Hide()
		}
		bg.Refresh()

		lbl.TextStyle = fyne.TextStyle{Monospace: id.Col == 1}
		lbl.SetText(cellText(id.Row-1, records[id.Row-1], id.Col))
	}

	t.SetRowHeight(0, 30)
	for r := 1; r < rows; r++ {
		t.SetRowHeight(r, 28)
	}
	t.Refresh()
}
