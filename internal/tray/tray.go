// Package tray shows a system tray icon for a running padmapper.
package tray

import (
	"log/slog"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"

	"fyne.io/systray"
	"github.com/google/uuid"

	"github.com/soar/padmapper/internal/engine"
)

// Actions are the engine operations reachable from the menu.
type Actions struct {
	Reset         func()
	SelectProfile func(id uuid.UUID) bool
	Profiles      func() []engine.ProfileSummary
	Shutdown      func()
}

// Tray manages the system tray icon and menu.
type Tray struct {
	url          string
	actions      Actions
	logger       *slog.Logger
	once         sync.Once
	shuttingDown atomic.Bool

	menuOpen  *systray.MenuItem
	menuReset *systray.MenuItem
	menuExit  *systray.MenuItem
	profiles  []profileItem
}

type profileItem struct {
	id   uuid.UUID
	item *systray.MenuItem
}

// New creates a tray whose "Open Viewer" item opens url.
func New(url string, actions Actions, logger *slog.Logger) *Tray {
	return &Tray{url: url, actions: actions, logger: logger}
}

// Run initializes and runs the system tray. It blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon, unblocking Run.
func (t *Tray) Quit() {
	t.shuttingDown.Store(true)
	systray.Quit()
}

func (t *Tray) onReady() {
	if icon := Icon(); icon != nil {
		systray.SetIcon(icon)
	}
	systray.SetTitle("padmapper")
	systray.SetTooltip("padmapper - " + t.url)

	t.menuOpen = systray.AddMenuItem("Open Viewer", "Open the web viewer")
	t.menuReset = systray.AddMenuItem("Reset Detectors", "Drop in-flight chords, sequences and gestures")

	profiles := systray.AddMenuItem("Profile", "Switch the active profile")
	for _, p := range t.actions.Profiles() {
		item := profiles.AddSubMenuItemCheckbox(p.Name, "Activate "+p.Name, p.Active)
		t.profiles = append(t.profiles, profileItem{id: p.ID, item: item})
	}

	systray.AddSeparator()
	t.menuExit = systray.AddMenuItem("Exit", "Quit padmapper")

	go t.handleMenuClicks()
	for _, p := range t.profiles {
		go t.handleProfileClicks(p)
	}

	t.logger.Info("system tray initialized")
}

// handleMenuClicks processes menu item clicks without blocking the tray.
func (t *Tray) handleMenuClicks() {
	for {
		select {
		case <-t.menuOpen.ClickedCh:
			if !t.shuttingDown.Load() {
				t.openBrowser()
			}
		case <-t.menuReset.ClickedCh:
			if !t.shuttingDown.Load() {
				t.actions.Reset()
			}
		case <-t.menuExit.ClickedCh:
			if t.shuttingDown.CompareAndSwap(false, true) {
				t.once.Do(t.actions.Shutdown)
				systray.Quit()
				return
			}
		}
	}
}

func (t *Tray) handleProfileClicks(p profileItem) {
	for range p.item.ClickedCh {
		if t.shuttingDown.Load() {
			return
		}
		if !t.actions.SelectProfile(p.id) {
			continue
		}
		for _, other := range t.profiles {
			if other.id == p.id {
				other.item.Check()
			} else {
				other.item.Uncheck()
			}
		}
	}
}

func (t *Tray) onExit() {
	t.shuttingDown.Store(true)
	t.logger.Info("system tray exiting")
}

func (t *Tray) openBrowser() {
	name, args := browserCommand(runtime.GOOS, t.url)
	if err := exec.Command(name, args...).Start(); err != nil {
		t.logger.Warn("failed to open browser", "url", t.url, "error", err)
	}
}

func browserCommand(goos, url string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	case "darwin":
		return "open", []string{url}
	default:
		return "xdg-open", []string{url}
	}
}
