package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/samber/oops"

	"github.com/scoutme/client/app"
	"github.com/scoutme/client/core"
	"github.com/scoutme/client/internal/auth"
	"github.com/scoutme/client/internal/config"
	"github.com/scoutme/client/internal/mockapi"
	"github.com/scoutme/client/router"
)

const password = "password123"

var _ = Describe("Client application", func() {
	var (
		ctx     context.Context
		backend *mockapi.Server
		cfg     *config.Config
		fyneApp fyne.App
	)

	newApp := func() *app.App {
		a, err := app.New(cfg, fyneApp, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(a.Close)
		return a
	}

	current := func(a *app.App) router.Resolved {
		res, ok := a.Router.Current()
		Expect(ok).To(BeTrue())
		return res
	}

	login := func(a *app.App, email string) {
		res := a.Session.Login(ctx, auth.Credentials{Email: email, Password: password})
		Expect(res.Success).To(BeTrue(), res.Message)
	}

	BeforeEach(func() {
		ctx = context.Background()
		fyneApp = test.NewApp()
		DeferCleanup(fyneApp.Quit)

		backend = mockapi.New()
		_, err := backend.AddUser(auth.User{Role: auth.RoleJoueur, FirstName: "Kylian", LastName: "M", Email: "joueur@scoutme.test"}, password)
		Expect(err).NotTo(HaveOccurred())
		_, err = backend.AddUser(auth.User{Role: auth.RoleRecruteur, FirstName: "Didier", LastName: "D", Email: "recruteur@scoutme.test"}, password)
		Expect(err).NotTo(HaveOccurred())
		srv := httptest.NewServer(backend)
		DeferCleanup(srv.Close)

		cfg = &config.Config{
			API:     config.APIConfig{URL: srv.URL + mockapi.Prefix, Timeout: 5 * time.Second},
			Log:     config.LogConfig{Format: config.DefaultLogFormat},
			Storage: config.StorageConfig{Backend: config.BackendMemory},
			Redis:   config.RedisConfig{Prefix: config.DefaultRedisKey},
			App:     config.AppConfig{ID: config.DefaultAppID},
		}
	})

	Describe("signed out", func() {
		It("opens on the home page", func() {
			a := newApp()
			Expect(a.Start(ctx)).To(Succeed())

			Expect(current(a).Route.Name).To(Equal(router.RouteHome))
			Expect(a.Shell.Win.Title()).To(Equal("Accueil - ScoutMe"))
		})

		It("sends protected pages to login with a redirect", func() {
			a := newApp()
			Expect(a.Start(ctx)).To(Succeed())

			res, err := a.Router.Push(router.Location{Name: router.RouteAnnonceEdit, Params: map[string]string{"id": "12"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Route.Name).To(Equal(router.RouteLogin))
			Expect(res.Query.Get("redirect")).To(Equal("/annonces/12/edit"))
		})

		It("does not treat bad credentials as an expired session", func() {
			a := newApp()
			Expect(a.Start(ctx)).To(Succeed())
			_, err := a.Router.Push(router.Location{Name: router.RouteLogin})
			Expect(err).NotTo(HaveOccurred())

			res := a.Session.Login(ctx, auth.Credentials{Email: "joueur@scoutme.test", Password: "wrong-password"})

			Expect(res.Success).To(BeFalse())
			Expect(res.Message).To(Equal("Identifiants incorrects"))
			Expect(current(a).Query.Has("expired")).To(BeFalse())
		})
	})

	Describe("signed in", func() {
		var a *app.App

		BeforeEach(func() {
			a = newApp()
			Expect(a.Start(ctx)).To(Succeed())
			login(a, "joueur@scoutme.test")
		})

		It("lands on the role dashboard and persists the session", func() {
			Expect(current(a).Route.Name).To(Equal(router.RouteDashboardJoueur))

			token, err := a.Storage.Get(core.TokenKey)
			Expect(err).NotTo(HaveOccurred())
			Expect(token).NotTo(BeEmpty())
			user, err := a.Storage.Get(core.UserKey)
			Expect(err).NotTo(HaveOccurred())
			Expect(user).To(ContainSubstring(`"role":"joueur"`))
		})

		It("keeps players out of recruiter pages", func() {
			res, err := a.Router.Push(router.Location{Name: router.RouteMesAnnonces})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Route.Name).To(Equal(router.RouteDashboardJoueur))
		})

		It("keeps signed-in users off guest pages", func() {
			res, err := a.Router.Push(router.Location{Name: router.RouteRegister})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Route.Name).To(Equal(router.RouteDashboardJoueur))
		})

		It("clears the session and shows login when the token is rejected", func() {
			backend.FailNext("/me", http.StatusUnauthorized, "Unauthenticated.")

			Expect(a.Session.FetchUser(ctx)).To(HaveOccurred())

			Expect(a.Session.IsAuthenticated()).To(BeFalse())
			res := current(a)
			Expect(res.Route.Name).To(Equal(router.RouteLogin))
			Expect(res.Query.Get("expired")).To(Equal("true"))
			_, err := a.Storage.Get(core.TokenKey)
			Expect(err).To(MatchError(core.ErrKeyNotFound))
		})

		It("goes home on a forbidden response", func() {
			backend.FailNext("/me", http.StatusForbidden, "Forbidden")

			Expect(a.Session.FetchUser(ctx)).To(HaveOccurred())

			Expect(a.Session.IsAuthenticated()).To(BeTrue())
			Expect(current(a).Route.Name).To(Equal(router.RouteHome))
		})

		It("logs out even when the backend fails", func() {
			backend.FailNext("/logout", http.StatusInternalServerError, "Server Error")

			a.Session.Logout(ctx)

			Expect(a.Session.IsAuthenticated()).To(BeFalse())
			Expect(current(a).Route.Name).To(Equal(router.RouteHome))
		})

		It("counts requests and navigations", func() {
			families, err := a.Metrics.Registry().Gather()
			Expect(err).NotTo(HaveOccurred())
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			Expect(names).To(ContainElements(
				"scoutme_api_requests_total",
				"scoutme_navigations_total",
				"scoutme_session_events_total",
			))
		})
	})

	Describe("storage backends", func() {
		It("restores the session from sqlite across restarts", func() {
			cfg.Storage = config.StorageConfig{Backend: config.BackendSQLite, Path: filepath.Join(GinkgoT().TempDir(), "session.db")}

			first := newApp()
			Expect(first.Start(ctx)).To(Succeed())
			login(first, "recruteur@scoutme.test")
			Expect(first.Close()).To(Succeed())

			second := newApp()
			Expect(second.Session.IsAuthenticated()).To(BeTrue())
			Expect(second.Session.IsRecruteur()).To(BeTrue())
			Expect(second.Start(ctx)).To(Succeed())
			Expect(second.Session.UserFullName()).To(Equal("Didier D"))
		})

		It("stores the session in redis", func() {
			mr := miniredis.RunT(GinkgoT())
			cfg.Storage.Backend = config.BackendRedis
			cfg.Redis.Addr = mr.Addr()

			a := newApp()
			Expect(a.Start(ctx)).To(Succeed())
			login(a, "joueur@scoutme.test")

			Expect(mr.Exists(config.DefaultRedisKey + core.TokenKey)).To(BeTrue())
		})

		It("fails fast when redis is unreachable", func() {
			mr := miniredis.RunT(GinkgoT())
			cfg.Storage.Backend = config.BackendRedis
			cfg.Redis.Addr = mr.Addr()
			cfg.API.Timeout = 500 * time.Millisecond
			mr.Close()

			_, err := app.New(cfg, fyneApp, nil)
			Expect(err).To(HaveOccurred())
			oopsErr, ok := oops.AsOops(err)
			Expect(ok).To(BeTrue())
			Expect(oopsErr.Code()).To(Equal("STORAGE_UNAVAILABLE"))
		})

		It("uses the fyne preferences by default", func() {
			cfg.Storage.Backend = config.BackendPreferences

			a := newApp()
			Expect(a.Start(ctx)).To(Succeed())
			login(a, "joueur@scoutme.test")

			Expect(fyneApp.Preferences().String(core.TokenKey)).NotTo(BeEmpty())
		})
	})
})
