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

var roleLabels = map[auth.Role]string{
	auth.RoleJoueur:    "Joueur",
	auth.RoleRecruteur: "Recruteur",
}

// RegisterView is the sign-up form. The "role" query preselects the role.
type RegisterView struct {
	store *core.SessionStore
	async func(func())

	firstName    *widget.Entry
	lastName     *widget.Entry
	email        *widget.Entry
	password     *widget.Entry
	confirmation *widget.Entry
	roleSelect   *widget.Select
	role         auth.Role

	fieldErrors    map[string]*widget.Label
	statusLabel    *widget.Label
	registerButton *widget.Button
	content        fyne.CanvasObject
}

func NewRegisterView(store *core.SessionStore, nav core.Navigator, query url.Values, async func(func())) *RegisterView {
	v := &RegisterView{store: store, async: async, fieldErrors: map[string]*widget.Label{}}

	v.firstName = widget.NewEntry()
	v.firstName.SetPlaceHolder("Prénom")
	v.lastName = widget.NewEntry()
	v.lastName.SetPlaceHolder("Nom")
	v.email = widget.NewEntry()
	v.email.SetPlaceHolder("Email")
	v.password = widget.NewPasswordEntry()
	v.password.SetPlaceHolder("Mot de passe")
	v.confirmation = widget.NewPasswordEntry()
	v.confirmation.SetPlaceHolder("Confirmer le mot de passe")

	options := make([]string, 0, len(auth.Roles()))
	for _, r := range auth.Roles() {
		options = append(options, roleLabels[r])
	}
	v.roleSelect = widget.NewSelect(options, func(label string) {
		for r, l := range roleLabels {
			if l == label {
				v.role = r
			}
		}
	})
	v.roleSelect.PlaceHolder = "Je suis..."
	if r, err := auth.ParseRole(query.Get("role")); err == nil {
		v.roleSelect.SetSelected(roleLabels[r])
	}

	for _, f := range []string{"first_name", "last_name", "email", "password", "role"} {
		v.fieldErrors[f] = errorLabel()
	}
	v.statusLabel = widget.NewLabel("")
	v.statusLabel.Wrapping = fyne.TextWrapWord

	v.registerButton = widget.NewButton("Créer mon compte", v.submit)
	v.registerButton.Importance = widget.HighImportance

	login := widget.NewButton("Déjà inscrit ? Connectez-vous", func() {
		_, _ = nav.Push(router.Location{Name: router.RouteLogin})
	})
	login.Importance = widget.LowImportance

	form := container.NewVBox(
		v.roleSelect, v.fieldErrors["role"],
		container.NewGridWithColumns(2, v.firstName, v.lastName),
		v.fieldErrors["first_name"], v.fieldErrors["last_name"],
		v.email, v.fieldErrors["email"],
		v.password, v.fieldErrors["password"],
		v.confirmation,
		v.registerButton,
		v.statusLabel,
		login,
	)
	v.content = container.NewCenter(widget.NewCard("Inscription", "Rejoignez ScoutMe", form))
	return v
}

func (v *RegisterView) Content() fyne.CanvasObject {
	return v.content
}

// Role returns the selected role, empty until one is chosen.
func (v *RegisterView) Role() auth.Role {
	return v.role
}

func (v *RegisterView) submit() {
	data := auth.Registration{
		FirstName:            strings.TrimSpace(v.firstName.Text),
		LastName:             strings.TrimSpace(v.lastName.Text),
		Email:                strings.TrimSpace(v.email.Text),
		Password:             v.password.Text,
		PasswordConfirmation: v.confirmation.Text,
		Role:                 v.role,
	}

	v.statusLabel.SetText("Inscription...")
	v.registerButton.Disable()
	v.async(func() {
		res := v.store.Register(context.Background(), data)
		fyne.Do(func() { v.apply(res) })
	})
}

func (v *RegisterView) apply(res types.Result) {
	v.registerButton.Enable()
	for field, label := range v.fieldErrors {
		setFieldError(label, res.Errors[field])
	}
	if res.Success {
		v.statusLabel.SetText("")
		return
	}
	v.statusLabel.SetText(res.Message)
}
