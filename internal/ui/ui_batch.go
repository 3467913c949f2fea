package ui

import (
	"log/slog"
	"sort"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/go-fiscalcode/internal/config"
	"github.com/tartampluch/go-fiscalcode/internal/engine"
)

// batchView is the sortable state behind the batch table.
type batchView struct {
	rows    []engine.FiscalCodeEntry
	sortCol int
	sortAsc bool
}

// sort orders rows by the active column. Failed entries have no code and
// sort after successful ones on the code column.
func (v *batchView) sort() {
	sort.SliceStable(v.rows, func(i, j int) bool {
		a, b := v.rows[i], v.rows[j]
		var less bool
		switch v.sortCol {
		case config.ColIDCode:
			switch {
			case a.FiscalCode == "" && b.FiscalCode != "":
				less = false
			case a.FiscalCode != "" && b.FiscalCode == "":
				less = true
			default:
				less = a.FiscalCode < b.FiscalCode
			}
		case config.ColIDStatus:
			less = a.Err == nil && b.Err != nil
		default: // config.ColIDName
			less = strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}

		if !v.sortAsc {
			return !less
		}
		return less
	})

	slog.Debug(config.LogMsgSorted,
		config.LogKeyComponent, config.CompUI,
		config.LogKeySortCol, v.sortCol,
		config.LogKeySortAsc, v.sortAsc)
}

// toggle selects col, flipping the direction when it is already active.
func (v *batchView) toggle(col int) {
	if v.sortCol == col {
		v.sortAsc = !v.sortAsc
	} else {
		v.sortCol = col
		v.sortAsc = true
	}
	v.sort()
}

// snapshotBatch copies the last batch result for display.
func (app *GoFiscalCodeApp) snapshotBatch() []engine.FiscalCodeEntry {
	app.BatchMut.RLock()
	defer app.BatchMut.RUnlock()
	if app.Batch == nil {
		return nil
	}
	rows := make([]engine.FiscalCodeEntry, len(app.Batch.Entries))
	copy(rows, app.Batch.Entries)
	return rows
}

// batchSummary renders "N contacts, M failed" for the last run.
func (app *GoFiscalCodeApp) batchSummary() string {
	app.BatchMut.RLock()
	defer app.BatchMut.RUnlock()
	if app.Batch == nil {
		return ""
	}
	return app.GetMsgData(config.TKeyLblBatchSum, map[string]any{
		"Count":  len(app.Batch.Entries),
		"Failed": app.Batch.Failed,
	})
}

// ShowBatchWindow displays the fiscal codes of the configured address book.
// Only one instance is open at a time; headers sort the table.
func (app *GoFiscalCodeApp) ShowBatchWindow() {
	if app.batchWindow != nil {
		app.batchWindow.RequestFocus()
		return
	}

	w := app.App.NewWindow(app.GetMsg(config.TKeyWinBatch))
	app.batchWindow = w
	w.Resize(fyne.NewSize(config.BatchWinWidth, config.BatchWinHeight))

	view := &batchView{rows: app.snapshotBatch(), sortCol: config.ColIDName, sortAsc: true}
	view.sort()

	slog.Info(config.LogMsgOpenWin,
		config.LogKeyComponent, config.CompUI,
		config.LogKeyCount, len(view.rows))

	table := widget.NewTable(
		func() (int, int) {
			return len(view.rows), 3
		},
		func() fyne.CanvasObject {
			return widget.NewLabel(config.TablePlaceholder)
		},
		func(id widget.TableCellID, o fyne.CanvasObject) {
			label := o.(*widget.Label)
			if id.Row >= len(view.rows) {
				return
			}
			e := view.rows[id.Row]

			switch id.Col {
			case config.ColIDName:
				label.SetText(e.Name)
			case config.ColIDCode:
				label.SetText(e.FiscalCode)
			case config.ColIDStatus:
				if e.Err == nil {
					label.SetText(config.StatusOK)
				} else {
					label.SetText(strings.ReplaceAll(app.LocalizeError(e.Err), "\n", "; "))
				}
			}
		},
	)

	table.ShowHeaderRow = true
	table.CreateHeader = func() fyne.CanvasObject {
		return widget.NewButton(config.TablePlaceholder, func() {})
	}
	table.UpdateHeader = func(id widget.TableCellID, o fyne.CanvasObject) {
		btn := o.(*widget.Button)

		var titleKey string
		switch id.Col {
		case config.ColIDName:
			titleKey = config.TKeyColName
		case config.ColIDCode:
			titleKey = config.TKeyColCode
		case config.ColIDStatus:
			titleKey = config.TKeyColStatus
		}

		text := app.GetMsg(titleKey)
		if id.Col == view.sortCol {
			if view.sortAsc {
				text += config.SortIconAsc
			} else {
				text += config.SortIconDesc
			}
		}
		btn.SetText(text)

		btn.OnTapped = func() {
			view.toggle(id.Col)
			table.Refresh()
		}
	}

	table.SetColumnWidth(config.ColIDName, config.ColWidthName)
	table.SetColumnWidth(config.ColIDCode, config.ColWidthCode)
	table.SetColumnWidth(config.ColIDStatus, config.ColWidthStatus)

	summary := widget.NewLabel(app.batchSummary())

	var btnRun *widget.Button
	btnRun = widget.NewButtonWithIcon(app.GetMsg(config.TKeyBtnRun), theme.MediaPlayIcon(), func() {
		btnRun.Disable()
		go func() {
			_, err := app.RunBatch()
			fyne.Do(func() {
				btnRun.Enable()
				if err != nil {
					dialog.ShowError(err, w)
					summary.SetText(app.GetMsg(config.TKeyErrBatch))
					return
				}
				view.rows = app.snapshotBatch()
				view.sort()
				summary.SetText(app.batchSummary())
				table.Refresh()
			})
		}()
	})
	btnRun.Importance = widget.HighImportance

	top := container.NewBorder(nil, nil, nil, btnRun, summary)
	w.SetContent(container.NewBorder(top, nil, nil, nil, table))

	w.SetOnClosed(func() {
		app.batchWindow = nil
	})
	w.Show()
}
