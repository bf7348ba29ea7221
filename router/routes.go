// Package router holds the ScoutMe route table, the navigation guard and the
// router that resolves locations and keeps the navigation history.
package router

import "github.com/scoutme/client/internal/auth"

// DefaultTitle is shown for routes without a title.
const DefaultTitle = "ScoutMe - Plateforme de recrutement sportif"

// Route names.
const (
	RouteHome          = "home"
	RouteRoleSelection = "role-selection"
	RouteRegister      = "register"
	RouteLogin         = "login"

	RouteJoueursSearch = "joueurs-search"
	RouteJoueurProfil  = "joueur-profil"
	RouteAnnoncesList  = "annonces-list"
	RouteAnnonceDetail = "annonce-detail"

	RouteDashboardJoueur = "dashboard-joueur"
	RouteMonProfil       = "mon-profil"
	RouteMesVideos       = "mes-videos"
	RouteMesExperiences  = "mes-experiences"
	RouteMesCandidatures = "mes-candidatures"

	RouteDashboardRecruteur  = "dashboard-recruteur"
	RouteMesAnnonces         = "mes-annonces"
	RouteAnnonceCreate       = "annonce-create"
	RouteAnnonceEdit         = "annonce-edit"
	RouteAnnonceCandidatures = "annonce-candidatures"

	RouteNotFound = "not-found"
)

// CatchAllPath matches every path no other route matches.
const CatchAllPath = "/*"

// Meta drives the navigation guard.
type Meta struct {
	RequiresAuth bool
	RequiresRole auth.Role
	// Guest routes are only reachable while signed out.
	Guest bool
	Title string
}

// Route is one entry of the route table. Paths use ":name" for parameters.
type Route struct {
	Name string
	Path string
	Meta Meta
}

func player(name, path, title string) Route {
	return Route{Name: name, Path: path, Meta: Meta{RequiresAuth: true, RequiresRole: auth.RoleJoueur, Title: title}}
}

func recruiter(name, path, title string) Route {
	return Route{Name: name, Path: path, Meta: Meta{RequiresAuth: true, RequiresRole: auth.RoleRecruteur, Title: title}}
}

// DefaultRoutes returns the ScoutMe route table. The catch-all comes last.
func DefaultRoutes() []Route {
	return []Route{
		{Name: RouteHome, Path: "/", Meta: Meta{Title: "Accueil - ScoutMe"}},

		{Name: RouteRoleSelection, Path: "/role-selection", Meta: Meta{Guest: true, Title: "Choisir votre rôle - ScoutMe"}},
		{Name: RouteRegister, Path: "/register", Meta: Meta{Guest: true, Title: "Inscription - ScoutMe"}},
		{Name: RouteLogin, Path: "/login", Meta: Meta{Guest: true, Title: "Connexion - ScoutMe"}},

		{Name: RouteJoueursSearch, Path: "/joueurs", Meta: Meta{Title: "Rechercher des joueurs - ScoutMe"}},
		{Name: RouteJoueurProfil, Path: "/joueurs/:id", Meta: Meta{Title: "Profil joueur - ScoutMe"}},
		{Name: RouteAnnoncesList, Path: "/annonces", Meta: Meta{Title: "Annonces de recrutement - ScoutMe"}},
		{Name: RouteAnnonceDetail, Path: "/annonces/:id", Meta: Meta{Title: "Détail annonce - ScoutMe"}},

		player(RouteDashboardJoueur, "/dashboard/joueur", "Mon Dashboard - ScoutMe"),
		player(RouteMonProfil, "/mon-profil", "Mon Profil - ScoutMe"),
		player(RouteMesVideos, "/mes-videos", "Mes Vidéos - ScoutMe"),
		player(RouteMesExperiences, "/mes-experiences", "Mes Expériences - ScoutMe"),
		player(RouteMesCandidatures, "/mes-candidatures", "Mes Candidatures - ScoutMe"),

		recruiter(RouteDashboardRecruteur, "/dashboard/recruteur", "Mon Dashboard - ScoutMe"),
		recruiter(RouteMesAnnonces, "/mes-annonces", "Mes Annonces - ScoutMe"),
		recruiter(RouteAnnonceCreate, "/annonces/create", "Créer une annonce - ScoutMe"),
		recruiter(RouteAnnonceEdit, "/annonces/:id/edit", "Modifier annonce - ScoutMe"),
		recruiter(RouteAnnonceCandidatures, "/annonces/:id/candidatures", "Candidatures reçues - ScoutMe"),

		{Name: RouteNotFound, Path: CatchAllPath, Meta: Meta{Title: "404 - Page non trouvée"}},
	}
}
