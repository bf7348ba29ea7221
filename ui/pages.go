package ui

import (
	"fmt"
	"net/url"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/scoutme/client/internal/auth"
	"github.com/scoutme/client/router"
)

// page builds the view of a resolved route. Only the authentication forms
// are real; the other pages are placeholders.
func (s *Shell) page(res router.Resolved) fyne.CanvasObject {
	switch res.Route.Name {
	case router.RouteLogin:
		return NewLoginView(s.store, s.router, res.Query, s.async).Content()
	case router.RouteRegister:
		return NewRegisterView(s.store, s.router, res.Query, s.async).Content()
	case router.RouteHome:
		return s.homePage()
	case router.RouteRoleSelection:
		return s.roleSelectionPage()
	case router.RouteDashboardJoueur, router.RouteDashboardRecruteur:
		return placeholder("Bienvenue "+s.store.UserFullName(), "Votre tableau de bord ScoutMe.")
	case router.RouteJoueurProfil:
		return placeholder("Profil joueur", fmt.Sprintf("Joueur n°%s", res.Params["id"]))
	case router.RouteAnnonceDetail:
		return placeholder("Annonce", fmt.Sprintf("Annonce n°%s", res.Params["id"]))
	case router.RouteAnnonceEdit:
		return placeholder("Modifier l'annonce", fmt.Sprintf("Annonce n°%s", res.Params["id"]))
	case router.RouteAnnonceCandidatures:
		return placeholder("Candidatures reçues", fmt.Sprintf("Annonce n°%s", res.Params["id"]))
	case router.RouteNotFound:
		home := widget.NewButton("Retour à l'accueil", func() { s.Push(router.Location{Name: router.RouteHome}) })
		return container.NewCenter(container.NewVBox(
			title("404"),
			widget.NewLabel("La page "+res.Path+" n'existe pas."),
			home,
		))
	default:
		return placeholder(res.Route.Meta.Title, res.FullPath())
	}
}

func (s *Shell) homePage() fyne.CanvasObject {
	actions := container.NewHBox(
		widget.NewButton("Trouver des joueurs", func() { s.Push(router.Location{Name: router.RouteJoueursSearch}) }),
		widget.NewButton("Voir les annonces", func() { s.Push(router.Location{Name: router.RouteAnnoncesList}) }),
	)
	if !s.store.IsAuthenticated() {
		join := widget.NewButton("Rejoindre ScoutMe", func() { s.Push(router.Location{Name: router.RouteRoleSelection}) })
		join.Importance = widget.HighImportance
		actions.Add(join)
	}
	return container.NewCenter(container.NewVBox(
		title("ScoutMe"),
		widget.NewLabel("La plateforme de recrutement sportif."),
		actions,
	))
}

func (s *Shell) roleSelectionPage() fyne.CanvasObject {
	choose := func(r auth.Role) func() {
		return func() {
			s.Push(router.Location{Name: router.RouteRegister, Query: url.Values{"role": {string(r)}}})
		}
	}
	return container.NewCenter(container.NewVBox(
		title("Vous êtes..."),
		container.NewGridWithColumns(2,
			widget.NewButton(roleLabels[auth.RoleJoueur], choose(auth.RoleJoueur)),
			widget.NewButton(roleLabels[auth.RoleRecruteur], choose(auth.RoleRecruteur)),
		),
	))
}

func placeholder(heading, detail string) fyne.CanvasObject {
	return container.NewCenter(container.NewVBox(title(heading), widget.NewLabel(detail)))
}

func title(text string) *widget.Label {
	l := widget.NewLabel(text)
	l.TextStyle = fyne.TextStyle{Bold: true}
	l.Alignment = fyne.TextAlignCenter
	return l
}
