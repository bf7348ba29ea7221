package ui

import (
	"context"
	"net/url"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/scoutme/client/core"
	"github.com/scoutme/client/internal/auth"
	"github.com/scoutme/client/internal/types"
	"github.com/scoutme/client/router"
)

const msgSessionExpired = "Votre session a expiré, veuillez vous reconnecter."

// LoginView is the sign-in form. After a successful login it follows the
// redirect query set by the guard, if any.
type LoginView struct {
	store    *core.SessionStore
	nav      core.Navigator
	async    func(func())
	redirect string

	emailEntry    *widget.Entry
	passwordEntry *widget.Entry
	emailError    *widget.Label
	passwordError *widget.Label
	statusLabel   *widget.Label
	loginButton   *widget.Button
	content       fyne.CanvasObject
}

func NewLoginView(store *core.SessionStore, nav core.Navigator, query url.Values, async func(func())) *LoginView {
	v := &LoginView{store: store, nav: nav, async: async}
	if r := query.Get("redirect"); strings.HasPrefix(r, "/") {
		v.redirect = r
	}

	v.emailEntry = widget.NewEntry()
	v.emailEntry.SetPlaceHolder("Email")
	v.passwordEntry = widget.NewPasswordEntry()
	v.passwordEntry.SetPlaceHolder("Mot de passe")
	v.passwordEntry.OnSubmitted = func(string) { v.submit() }

	v.emailError = errorLabel()
	v.passwordError = errorLabel()
	v.statusLabel = widget.NewLabel("")
	v.statusLabel.Wrapping = fyne.TextWrapWord
	if query.Get("expired") == "true" {
		v.statusLabel.SetText(msgSessionExpired)
	}

	v.loginButton = widget.NewButton("Se connecter", v.submit)
	v.loginButton.Importance = widget.HighImportance

	register := widget.NewButton("Pas encore de compte ? Inscrivez-vous", func() {
		_, _ = nav.Push(router.Location{Name: router.RouteRoleSelection})
	})
	register.Importance = widget.LowImportance

	form := container.NewVBox(
		v.emailEntry, v.emailError,
		v.passwordEntry, v.passwordError,
		v.loginButton,
		v.statusLabel,
		register,
	)
	v.content = container.NewCenter(widget.NewCard("Connexion", "Accédez à votre espace ScoutMe", form))
	return v
}

func (v *LoginView) Content() fyne.CanvasObject {
	return v.content
}

func (v *LoginView) submit() {
	creds := auth.Credentials{
		Email:    strings.TrimSpace(v.emailEntry.Text),
		Password: v.passwordEntry.Text,
	}
	if creds.Email == "" || creds.Password == "" {
		v.statusLabel.SetText("Email et mot de passe requis.")
		return
	}

	v.statusLabel.SetText("Connexion...")
	v.loginButton.Disable()
	v.async(func() {
		res := v.store.Login(context.Background(), creds)
		fyne.Do(func() {
			v.apply(res)
			if res.Success && v.redirect != "" {
				_, _ = v.nav.Push(router.Location{Path: v.redirect})
			}
		})
	})
}

func (v *LoginView) apply(res types.Result) {
	v.loginButton.Enable()
	setFieldError(v.emailError, res.Errors["email"])
	setFieldError(v.passwordError, res.Errors["password"])
	if res.Success {
		v.statusLabel.SetText("")
		return
	}
	v.statusLabel.SetText(res.Message)
}

func errorLabel() *widget.Label {
	l := widget.NewLabel("")
	l.Importance = widget.DangerImportance
	l.Wrapping = fyne.TextWrapWord
	l.Hide()
	return l
}

func setFieldError(l *widget.Label, messages []string) {
	if len(messages) == 0 {
		l.SetText("")
		l.Hide()
		return
	}
	l.SetText(strings.Join(messages, "\n"))
	l.Show()
}
