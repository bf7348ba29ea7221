package ui

import (
	"context"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"github.com/scoutme/client/assets"
	"github.com/scoutme/client/core"
	"github.com/scoutme/client/internal/logging"
	"github.com/scoutme/client/router"
)

// Shell is the main window. It renders the page of the current route and
// keeps the navigation bar in sync with the session.
type Shell struct {
	App fyne.App
	Win fyne.Window

	store  *core.SessionStore
	router *router.Router
	logger *slog.Logger
	// async runs network calls off the fyne main goroutine.
	async func(func())

	navBar  *fyne.Container
	body    *fyne.Container
	current router.Resolved
	// authed is the sign-in state the current page was rendered with.
	authed bool
}

// NewShell creates the window. Call Attach once the router exists.
func NewShell(a fyne.App, store *core.SessionStore, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Shell{
		App:    a,
		store:  store,
		logger: logger.With("component", "ui"),
		async:  func(f func()) { go f() },
	}
	s.Win = a.NewWindow(router.DefaultTitle)
	s.Win.Resize(fyne.NewSize(720, 520))
	s.Win.SetIcon(assets.Icon())

	s.navBar = container.NewHBox()
	s.body = container.NewStack(widget.NewLabel("Chargement..."))
	s.Win.SetContent(container.NewBorder(s.navBar, nil, nil, nil, container.NewPadded(s.body)))
	s.authed = store.IsAuthenticated()
	s.refreshNav()

	store.Subscribe(func(snap core.Session) {
		fyne.Do(func() { s.sessionChanged(snap) })
	})
	s.setupSystemTray()
	return s
}

// Attach connects the shell to the router: every committed navigation
// renders its page.
func (s *Shell) Attach(r *router.Router) {
	s.router = r
	r.OnChange(func(res router.Resolved) {
		fyne.Do(func() { s.render(res) })
	})
	s.refreshNav()
}

// SetTitle implements router.TitleSetter.
func (s *Shell) SetTitle(title string) {
	fyne.Do(func() { s.Win.SetTitle(title) })
}

// Current returns the route whose page is displayed.
func (s *Shell) Current() router.Resolved {
	return s.current
}

// Push navigates and reports failures to the user.
func (s *Shell) Push(loc router.Location) {
	if s.router == nil {
		return
	}
	if _, err := s.router.Push(loc); err != nil {
		s.logger.Warn("navigation failed", "to", loc.Name+loc.Path, "error", err)
		dialog.ShowError(err, s.Win)
	}
}

func (s *Shell) render(res router.Resolved) {
	s.current = res
	s.authed = s.store.IsAuthenticated()
	s.body.Objects = []fyne.CanvasObject{s.page(res)}
	s.body.Refresh()
}

// sessionChanged redraws the page when the sign-in state flips, since a
// navigation to the route already shown does not reach render.
func (s *Shell) sessionChanged(snap core.Session) {
	s.refreshNav()
	if snap.IsAuthenticated() == s.authed || s.current.Route.Name == "" {
		return
	}
	s.render(s.current)
}

func (s *Shell) refreshNav() {
	link := func(label, name string) *widget.Button {
		b := widget.NewButton(label, func() { s.Push(router.Location{Name: name}) })
		b.Importance = widget.LowImportance
		return b
	}

	items := []fyne.CanvasObject{
		link("Accueil", router.RouteHome),
		link("Joueurs", router.RouteJoueursSearch),
		link("Annonces", router.RouteAnnoncesList),
		layout.NewSpacer(),
	}

	if s.store.IsAuthenticated() {
		user := widget.NewLabel(s.store.UserFullName())
		user.TextStyle = fyne.TextStyle{Bold: true}
		dashboard := widget.NewButton("Mon dashboard", func() {
			name, err := router.DashboardFor(s.store.CurrentRole())
			if err != nil {
				dialog.ShowError(err, s.Win)
				return
			}
			s.Push(router.Location{Name: name})
		})
		items = append(items, user, dashboard, widget.NewButton("Déconnexion", s.logout))
	} else {
		items = append(items, link("Connexion", router.RouteLogin), link("Inscription", router.RouteRoleSelection))
	}

	s.navBar.Objects = items
	s.navBar.Refresh()
}

func (s *Shell) logout() {
	s.async(func() {
		s.store.Logout(context.Background())
	})
}

// setupSystemTray adds a tray icon on desktop drivers.
func (s *Shell) setupSystemTray() {
	desk, ok := s.App.(desktop.App)
	if !ok {
		s.logger.Debug("system tray not supported on this platform")
		return
	}
	show := fyne.NewMenuItem("Afficher", func() {
		s.Win.Show()
		s.Win.RequestFocus()
	})
	desk.SetSystemTrayMenu(fyne.NewMenu("ScoutMe", show))
	desk.SetSystemTrayIcon(assets.Icon())
}

// Run shows the window and blocks in the fyne event loop.
func (s *Shell) Run() {
	s.Win.ShowAndRun()
}
