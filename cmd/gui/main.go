package main

import (
	"errors"
	"fmt"
	"image/color"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
	"github.com/awnumar/memguard"
	"github.com/sirupsen/logrus"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/config"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/service"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vault"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vaulterr"
)

// blueHeader creates a royal-blue title bar with white text.
func blueHeader(title string) fyne.CanvasObject {
	bg := canvas.NewRectangle(royalBlue)
	bg.SetMinSize(fyne.NewSize(0, 36))
	t := canvas.NewText(title, color.White)
	t.TextStyle = fyne.TextStyle{Bold: true}
	return container.NewStack(bg, container.NewPadded(t))
}

// makePrimary makes a button follow the app accent (royal blue).
func makePrimary(btn *widget.Button) *widget.Button {
	btn.Importance = widget.HighImportance
	return btn
}

// describeError maps error kinds to a message for a dialog.
func describeError(err error) error {
	switch {
	case errors.Is(err, vaulterr.ErrPayloadTooLarge):
		return errors.New("the vault is full; delete a key before adding another")
	case errors.Is(err, vaulterr.ErrInvalidKey):
		return err
	default:
		return fmt.Errorf("operation failed: %w", err)
	}
}

type ui struct {
	app    fyne.App
	win    fyne.Window
	svc    *service.Service
	prefs  themePrefs
	dir    string
	th     accentTheme
	table  *widget.Table
	status *widget.Label

	records  vault.Vault
	selected int
}

func main() {
	memguard.CatchInterrupt()
	defer memguard.Purge()

	cfg, err := config.Load(config.New(), "")
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log, err := config.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.Fatalf("configure logging: %v", err)
	}

	a := app.NewWithID("io.github.hussein-mazeh.licensekeymanager")
	u := &ui{
		app:      a,
		win:      a.NewWindow("License Key Manager"),
		prefs:    loadThemePrefs(cfg.Dir, cfg.Theme),
		dir:      cfg.Dir,
		selected: -1,
	}
	u.applyTheme()
	u.win.Resize(fyne.NewSize(820, 520))

	bar := widget.NewProgressBarInfinite()
	preparing := dialog.NewCustomWithoutButtons("Preparing vault",
		container.NewVBox(widget.NewLabel("Loading key material. The first start generates an RSA key pair."), bar),
		u.win)
	preparing.Show()

	// The first start generates an RSA-4096 pair, so open off the UI goroutine.
	go func() {
		svc, err := service.New(service.OptionsFromConfig(cfg, log))
		fyne.Do(func() {
			preparing.Hide()
			if err != nil {
				dialog.ShowError(fmt.Errorf("open vault in %s: %w", cfg.Dir, err), u.win)
				return
			}
			u.svc = svc
			u.showVault()
			if warn := svc.LoadWarning(); warn != nil {
				dialog.ShowInformation("Vault Reset",
					fmt.Sprintf("The stored vault could not be read and was set aside.\n%v", warn), u.win)
			}
		})
	}()

	u.win.SetOnClosed(func() {
		if u.svc != nil {
			_ = u.svc.Close()
		}
	})
	u.win.ShowAndRun()
}

func (u *ui) applyTheme() {
	u.th = newAccentTheme(u.prefs)
	u.app.Settings().SetTheme(u.th)
}

func (u *ui) showVault() {
	u.table = newRecordTable()
	u.table.OnSelected = func(id widget.TableCellID) {
		if id.Row == 0 {
			u.selected = -1
			return
		}
		u.selected = id.Row - 1
		u.setStatus()
	}
	u.table.SetColumnWidth(0, 50)
	u.table.SetColumnWidth(1, 440)
	u.table.SetColumnWidth(2, 200)

	u.status = widget.NewLabel("")

	btnGenerate := makePrimary(widget.NewButton("Generate Key", u.onGenerate))
	btnCustom := widget.NewButton("Add Custom Key…", u.onAddCustom)
	btnCopy := widget.NewButton("Copy", u.onCopy)
	btnDelete := widget.NewButton("Delete", u.onDelete)
	btnDelete.Importance = widget.DangerImportance

	darkToggle := widget.NewCheck("Dark theme", nil)
	darkToggle.SetChecked(u.prefs.dark())
	darkToggle.OnChanged = func(on bool) {
		u.prefs.Variant = "light"
		if on {
			u.prefs.Variant = "dark"
		}
		if err := saveThemePrefs(u.dir, u.prefs); err != nil {
			dialog.ShowError(fmt.Errorf("save theme: %w", err), u.win)
		}
		u.applyTheme()
		refreshTable(u.table, u.records, u.th)
	}

	actions := container.NewHBox(btnGenerate, btnCustom, layout.NewSpacer(), btnCopy, btnDelete)
	footer := container.NewHBox(u.status, layout.NewSpacer(), darkToggle)

	u.win.SetContent(container.NewBorder(
		container.NewVBox(blueHeader("License Keys"), container.NewPadded(actions)),
		container.NewPadded(footer),
		nil, nil,
		container.NewPadded(u.table),
	))

	u.svc.Subscribe(func(c service.Change) {
		fyne.Do(func() { u.render(c.Records) })
	})
	u.render(u.svc.ListRecords())
}

func (u *ui) render(records vault.Vault) {
	u.records = records
	if u.selected >= len(records) {
		u.selected = -1
		u.table.UnselectAll()
	}
	refreshTable(u.table, records, u.th)
	u.setStatus()
}

func (u *ui) setStatus() {
	msg := fmt.Sprintf("%d keys stored", len(u.records))
	if u.selected >= 0 {
		msg += fmt.Sprintf(" · #%d selected", u.selected)
	}
	u.status.SetText(msg)
}

func (u *ui) onGenerate() {
	rec, err := u.svc.GenerateAndStore("")
	if err != nil {
		dialog.ShowError(describeError(err), u.win)
		return
	}
	u.app.Clipboard().SetContent(rec.Key)
	dialog.ShowInformation("Key Generated", rec.Key+"\n\nCopied to clipboard.", u.win)
}

func (u *ui) onAddCustom() {
	entry := widget.NewEntry()
	entry.SetPlaceHolder("custom key text")
	dialog.ShowForm("Add Custom Key", "Add", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Key", entry)},
		func(ok bool) {
			if !ok {
				return
			}
			if _, err := u.svc.GenerateAndStore(entry.Text); err != nil {
				dialog.ShowError(describeError(err), u.win)
			}
		}, u.win)
}

func (u *ui) onCopy() {
	if u.selected < 0 {
		dialog.ShowInformation("Copy", "Select a key first.", u.win)
		return
	}
	text, err := u.svc.ExportRecordText(u.selected)
	if err != nil {
		dialog.ShowError(describeError(err), u.win)
		return
	}
	u.app.Clipboard().SetContent(text)
	dialog.ShowInformation("Copied", "License key copied to clipboard", u.win)
}

func (u *ui) onDelete() {
	if u.selected < 0 {
		dialog.ShowInformation("Delete", "Select a key first.", u.win)
		return
	}
	index := u.selected
	rec, err := u.records.At(index)
	if err != nil {
		return
	}
	dialog.ShowConfirm("Delete Key",
		fmt.Sprintf("Delete key #%d?\n%s", index, rec.Key),
		func(ok bool) {
			if !ok {
				return
			}
			if err := u.svc.DeleteRecord(index); err != nil {
				dialog.ShowError(describeError(err), u.win)
				return
			}
			u.selected = -1
			u.table.UnselectAll()
			u.setStatus()
		}, u.win)
}
